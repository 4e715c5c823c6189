package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/dedup"
	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ReplyGate deduplicates reply submissions before they reach the lifecycle engine.
// Submissions from one actor on one ticket run one at a time, and an identical
// message accepted within the window returns the stored reply instead of a new one.
type ReplyGate struct {
	tickets *TicketService
	store   dedup.Store
	window  time.Duration
	logger  *zap.Logger
}

// ReplyGateDependencies bundles collaborators for the gate.
type ReplyGateDependencies struct {
	Tickets *TicketService
	Store   dedup.Store
	Window  time.Duration
	Logger  *zap.Logger
}

// NewReplyGate constructs the gate.
func NewReplyGate(deps ReplyGateDependencies) *ReplyGate {
	gate := &ReplyGate{
		tickets: deps.Tickets,
		store:   deps.Store,
		window:  deps.Window,
		logger:  deps.Logger,
	}
	if gate.store == nil {
		gate.store = dedup.NewMemoryStore()
	}
	if gate.window <= 0 {
		gate.window = 2 * time.Second
	}
	if gate.logger == nil {
		gate.logger = zap.NewNop()
	}
	return gate
}

// SubmitReply appends message to the ticket unless the same actor submitted the
// same message within the window. The boolean reports a deduplicated result.
func (g *ReplyGate) SubmitReply(ctx context.Context, ticketID string, actor domain.Actor, message string) (*domain.Reply, bool, error) {
	if strings.TrimSpace(message) == "" {
		return nil, false, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}
	if err := validateActor(actor); err != nil {
		return nil, false, err
	}

	key := dedup.SubmitterKey(ticketID, string(actor.Kind), actor.Identity)
	release, err := g.store.Acquire(ctx, key)
	if err != nil {
		return nil, false, gateError(err)
	}
	defer release()

	fingerprint := dedup.Fingerprint(key, message)
	replyID, seen, err := g.store.Recall(ctx, fingerprint)
	if err != nil {
		return nil, false, gateError(err)
	}
	if seen {
		previous, err := g.tickets.GetReply(ctx, replyID)
		switch {
		case err == nil && previous.TicketID == ticketID:
			g.logger.Debug("duplicate reply suppressed",
				zap.String("ticket_id", ticketID),
				zap.String("reply_id", previous.ID))
			return previous, true, nil
		case err != nil && !apperrors.HasCode(err, apperrors.CodeNotFound):
			return nil, false, err
		}
		// The remembered reply was deleted meanwhile; accept the message again.
	}

	reply, err := g.tickets.AppendReply(ctx, ticketID, actor, message)
	if err != nil {
		return nil, false, err
	}

	if err := g.store.Remember(context.WithoutCancel(ctx), fingerprint, reply.ID, g.window); err != nil {
		g.logger.Warn("failed to record reply for dedup",
			zap.String("ticket_id", ticketID),
			zap.String("reply_id", reply.ID),
			zap.Error(err))
	}
	return reply, false, nil
}

// SendCustomerReply authorizes a customer by capability and submits the reply.
func (g *ReplyGate) SendCustomerReply(ctx context.Context, ticketNumber, email, message string) (*domain.Reply, bool, error) {
	ticket, err := g.tickets.GetByCapability(ctx, ticketNumber, email)
	if err != nil {
		return nil, false, err
	}
	return g.SubmitReply(ctx, ticket.ID, ticket.CustomerActor(), message)
}

// SendAgentReply submits a reply on behalf of an authenticated agent.
func (g *ReplyGate) SendAgentReply(ctx context.Context, agent *domain.Agent, ticketID, message string) (*domain.Reply, bool, error) {
	if agent == nil {
		return nil, false, apperrors.NewForbidden("agent access required")
	}
	return g.SubmitReply(ctx, ticketID, agent.Actor(), message)
}

func gateError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.NewStorageError(err)
}
