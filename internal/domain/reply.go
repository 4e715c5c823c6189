package domain

import "time"

// SenderType indicates who authored a reply.
type SenderType string

const (
	SenderCustomer SenderType = "Customer"
	SenderAgent    SenderType = "Agent"
)

// Valid reports whether s is a known sender.
func (s SenderType) Valid() bool {
	return s == SenderCustomer || s == SenderAgent
}

// Reply is one message in a ticket's conversation thread.
type Reply struct {
	ID         string
	TicketID   string
	Sender     SenderType
	SenderName string
	Message    string
	CreatedAt  time.Time
}

// Actor is the caller performing a ticket operation.
type Actor struct {
	Kind     SenderType
	Identity string
	Name     string
}

// IsAgent reports whether the actor is an authenticated agent.
func (a Actor) IsAgent() bool {
	return a.Kind == SenderAgent && a.Identity != ""
}
