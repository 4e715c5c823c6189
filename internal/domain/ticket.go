package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "New"
	TicketStatusPending  TicketStatus = "Pending"
	TicketStatusResolved TicketStatus = "Resolved"
)

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{TicketStatusNew, TicketStatusPending, TicketStatusResolved}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusPending, TicketStatusResolved:
		return true
	}
	return false
}

// ParseTicketStatus matches a status case-insensitively.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	for _, s := range TicketStatuses {
		if strings.EqualFold(string(s), strings.TrimSpace(raw)) {
			return s, true
		}
	}
	return "", false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// TicketPriorities lists every priority from lowest to highest.
var TicketPriorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// ParseTicketPriority matches a priority case-insensitively.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	for _, p := range TicketPriorities {
		if strings.EqualFold(string(p), strings.TrimSpace(raw)) {
			return p, true
		}
	}
	return "", false
}

// LastReplyBy records who wrote the most recent reply on a ticket.
type LastReplyBy string

const (
	LastReplyByNone     LastReplyBy = "None"
	LastReplyByCustomer LastReplyBy = "Customer"
	LastReplyByAgent    LastReplyBy = "Agent"
)

// LastReplyByFor maps a reply sender to the ticket attribution value.
func LastReplyByFor(sender SenderType) LastReplyBy {
	switch sender {
	case SenderCustomer:
		return LastReplyByCustomer
	case SenderAgent:
		return LastReplyByAgent
	}
	return LastReplyByNone
}

// Attachment is an opaque reference to an uploaded file.
type Attachment struct {
	Key         string `json:"key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string
	TicketNumber  string
	CustomerName  string
	CustomerEmail string
	Subject       string
	Description   string
	Priority      TicketPriority
	Status        TicketStatus
	Attachments   []Attachment
	LastReplyBy   LastReplyBy
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy safe to hand across goroutines.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Attachments != nil {
		cp.Attachments = append([]Attachment(nil), t.Attachments...)
	}
	return &cp
}

// CustomerActor returns the actor representing the ticket owner.
func (t *Ticket) CustomerActor() Actor {
	return Actor{
		Kind:     SenderCustomer,
		Identity: strings.ToLower(strings.TrimSpace(t.CustomerEmail)),
		Name:     t.CustomerName,
	}
}

// TicketNumberPrefix prefixes every human-facing ticket number.
const TicketNumberPrefix = "TKT-"

// FormatTicketNumber renders a sequence value as TKT-######.
func FormatTicketNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", TicketNumberPrefix, seq)
}

// NormalizeTicketNumber upper-cases and trims user input.
func NormalizeTicketNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// TicketStats summarises the ticket store for dashboards.
type TicketStats struct {
	Total           int64
	New             int64
	Pending         int64
	Resolved        int64
	CustomerReplies int64
}
