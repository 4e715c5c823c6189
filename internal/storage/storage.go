// Package storage keeps customer attachment bytes outside the ticket store.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("attachment object not found")

// Upload is one file received with a ticket submission.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// AttachmentStore persists attachment objects.
type AttachmentStore interface {
	Put(ctx context.Context, upload Upload) (domain.Attachment, error)
	Delete(ctx context.Context, key string) error
}

// objectKey builds a collision free key that keeps the original extension.
func objectKey(fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return "attachments/" + uuid.NewString() + ext
}

func contentTypeOrDefault(ct string) string {
	if strings.TrimSpace(ct) == "" {
		return "application/octet-stream"
	}
	return ct
}
