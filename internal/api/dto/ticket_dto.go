package dto

import (
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
)

// CreateTicketRequest payload. Multipart submissions use the same field names and
// carry files under "images".
type CreateTicketRequest struct {
	CustomerName  string `json:"customer_name" form:"customer_name"`
	CustomerEmail string `json:"customer_email" form:"customer_email"`
	Subject       string `json:"subject" form:"subject"`
	Description   string `json:"description" form:"description"`
	Priority      string `json:"priority" form:"priority"`
}

// TrackTicketRequest is the customer capability.
type TrackTicketRequest struct {
	TicketNumber  string `json:"ticket_number"`
	CustomerEmail string `json:"customer_email"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority string `json:"priority"`
}

// TicketResponse is the JSON view of a ticket.
type TicketResponse struct {
	ID            string                `json:"id"`
	TicketNumber  string                `json:"ticket_number"`
	CustomerName  string                `json:"customer_name"`
	CustomerEmail string                `json:"customer_email"`
	Subject       string                `json:"subject"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	LastReplyBy   domain.LastReplyBy    `json:"last_reply_by"`
	Attachments   []AttachmentResponse  `json:"attachments"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	Key         string `json:"key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// TicketStatsResponse is the dashboard summary.
type TicketStatsResponse struct {
	Total           int64 `json:"total"`
	New             int64 `json:"new"`
	Pending         int64 `json:"pending"`
	Resolved        int64 `json:"resolved"`
	CustomerReplies int64 `json:"customer_replies"`
}

// PageMeta describes a page of results.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Count    int `json:"count"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	attachments := make([]AttachmentResponse, 0, len(t.Attachments))
	for _, a := range t.Attachments {
		attachments = append(attachments, AttachmentResponse{
			Key:         a.Key,
			FileName:    a.FileName,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
		})
	}
	return TicketResponse{
		ID:            t.ID,
		TicketNumber:  t.TicketNumber,
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		Subject:       t.Subject,
		Description:   t.Description,
		Priority:      t.Priority,
		Status:        t.Status,
		LastReplyBy:   t.LastReplyBy,
		Attachments:   attachments,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewTicketStatsResponse maps stats.
func NewTicketStatsResponse(s *domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{
		Total:           s.Total,
		New:             s.New,
		Pending:         s.Pending,
		Resolved:        s.Resolved,
		CustomerReplies: s.CustomerReplies,
	}
}
