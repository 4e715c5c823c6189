package events

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventTicketReplyAdded      EventType = "ticket_reply_added"
	EventTicketReplyDeleted    EventType = "ticket_reply_deleted"
	EventTicketDeleted         EventType = "ticket_deleted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type     domain.SenderType `json:"type"`
	Identity string            `json:"identity,omitempty"`
}

// ActorFrom converts a lifecycle actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{Type: a.Kind, Identity: a.Identity}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber    string                `json:"ticket_number"`
	Priority        domain.TicketPriority `json:"priority"`
	Subject         string                `json:"subject"`
	AttachmentCount int                   `json:"attachment_count"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// TicketReplyAddedPayload payload.
type TicketReplyAddedPayload struct {
	ReplyID     string            `json:"reply_id"`
	Sender      domain.SenderType `json:"sender"`
	BodyPreview string            `json:"body_preview"`
}

// TicketReplyDeletedPayload payload.
type TicketReplyDeletedPayload struct {
	ReplyID     string             `json:"reply_id"`
	LastReplyBy domain.LastReplyBy `json:"last_reply_by"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	TicketNumber string `json:"ticket_number"`
}
