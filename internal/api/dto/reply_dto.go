package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CustomerEmailRequest carries the email half of the capability; the ticket number
// comes from the path.
type CustomerEmailRequest struct {
	CustomerEmail string `json:"customer_email"`
}

// CustomerReplyRequest payload.
type CustomerReplyRequest struct {
	CustomerEmail string `json:"customer_email"`
	Message       string `json:"message"`
}

// AgentReplyRequest payload.
type AgentReplyRequest struct {
	Message string `json:"message"`
}

// ReplyResponse represents one thread message.
type ReplyResponse struct {
	ID         string            `json:"id"`
	TicketID   string            `json:"ticket_id"`
	Sender     domain.SenderType `json:"sender"`
	SenderName string            `json:"sender_name"`
	Message    string            `json:"message"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ReplySubmissionResponse reports whether an identical recent submission was reused.
type ReplySubmissionResponse struct {
	ReplyResponse
	Deduplicated bool `json:"deduplicated"`
}

// NewReplyResponse maps a domain reply.
func NewReplyResponse(r *domain.Reply) ReplyResponse {
	return ReplyResponse{
		ID:         r.ID,
		TicketID:   r.TicketID,
		Sender:     r.Sender,
		SenderName: r.SenderName,
		Message:    r.Message,
		CreatedAt:  r.CreatedAt,
	}
}

// NewReplyList maps a thread.
func NewReplyList(replies []domain.Reply) []ReplyResponse {
	out := make([]ReplyResponse, 0, len(replies))
	for i := range replies {
		out = append(out, NewReplyResponse(&replies[i]))
	}
	return out
}
