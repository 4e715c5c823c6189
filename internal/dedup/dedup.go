// Package dedup holds the state behind reply submission deduplication: a short
// lived in-flight marker per submitter and a record of recently accepted
// submissions.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Store keeps in-flight markers and recent-submission records.
type Store interface {
	// Acquire blocks until the in-flight marker for key is held or ctx ends.
	// The release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
	// Recall returns the reply id remembered under fingerprint, if any.
	Recall(ctx context.Context, fingerprint string) (replyID string, ok bool, err error)
	// Remember records replyID under fingerprint for ttl.
	Remember(ctx context.Context, fingerprint, replyID string, ttl time.Duration) error
}

// SubmitterKey identifies one actor on one ticket.
func SubmitterKey(ticketID, actorKind, actorIdentity string) string {
	return ticketID + "|" + actorKind + "|" + strings.ToLower(actorIdentity)
}

// Fingerprint identifies one message from a submitter. Surrounding whitespace
// is ignored because stored messages are trimmed.
func Fingerprint(submitterKey, message string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(message)))
	return submitterKey + "|" + hex.EncodeToString(sum[:])
}
