package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/support-desk/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique constraint rejects a write.
	ErrConflict = errors.New("record conflict")
	// ErrUnavailable wraps transient backing store failures that are safe to retry.
	ErrUnavailable = errors.New("store unavailable")
)

// TicketFilter captures agent search parameters.
type TicketFilter struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Normalized clamps paging values to sane bounds.
func (f TicketFilter) Normalized() TicketFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// TicketRepository encapsulates ticket persistence outside the per-ticket unit of work.
type TicketRepository interface {
	// Create assigns ID, TicketNumber, CreatedAt and UpdatedAt.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, ticketNumber string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// Stats computes all counters from one consistent snapshot.
	Stats(ctx context.Context) (*domain.TicketStats, error)
}

// ReplyRepository reads ticket threads. Writes go through TicketTx.
type ReplyRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Reply, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Reply, error)
}

// AgentRepository handles persistence for agent accounts.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	Update(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	GetByEmail(ctx context.Context, email string) (*domain.Agent, error)
}

// TicketTx is a unit of work holding the exclusive lock of one ticket.
// Either every write made through it commits, or none does.
type TicketTx interface {
	// Ticket returns the locked ticket as read at the start of the unit of work.
	Ticket() *domain.Ticket
	// LatestReply returns the newest reply of the ticket, or nil for an empty thread.
	LatestReply(ctx context.Context) (*domain.Reply, error)
	InsertReply(ctx context.Context, reply *domain.Reply) error
	// DeleteReply removes a reply of the locked ticket; ErrNotFound if absent.
	DeleteReply(ctx context.Context, replyID string) error
	// UpdateTicket persists status, priority, last_reply_by and updated_at.
	UpdateTicket(ctx context.Context, ticket *domain.Ticket) error
	// DeleteTicket removes the ticket together with its replies.
	DeleteTicket(ctx context.Context) error
}

// TicketLocker runs fn inside a TicketTx for ticketID. Returns ErrNotFound when the
// ticket does not exist. Calls for the same ticket are serialized; calls for
// different tickets proceed independently.
type TicketLocker interface {
	WithTicket(ctx context.Context, ticketID string, fn func(ctx context.Context, tx TicketTx) error) error
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Repos bundles every store the services need.
type Repos struct {
	Tickets TicketRepository
	Replies ReplyRepository
	Agents  AgentRepository
	Locker  TicketLocker
	Health  Pinger
}
