// Package memstore is an in-process implementation of the repository contracts.
// It backs the service when no Postgres DSN is configured and doubles as the
// store for unit and HTTP tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/pkg/util/keylock"
)

// Store holds every table in memory. Committed state is guarded by mu; the
// per-ticket keyed mutex serializes units of work on the same ticket.
type Store struct {
	mu            sync.RWMutex
	tickets       map[string]*domain.Ticket
	byNumber      map[string]string
	replies       map[string][]domain.Reply
	replyTicket   map[string]string
	agents        map[string]*domain.Agent
	agentsByEmail map[string]string
	seq           int64

	ticketLocks *keylock.KeyedMutex
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tickets:       make(map[string]*domain.Ticket),
		byNumber:      make(map[string]string),
		replies:       make(map[string][]domain.Reply),
		replyTicket:   make(map[string]string),
		agents:        make(map[string]*domain.Agent),
		agentsByEmail: make(map[string]string),
		ticketLocks:   keylock.New(),
	}
}

// Repos exposes the store through the repository contracts.
func (s *Store) Repos() *repository.Repos {
	return &repository.Repos{
		Tickets: ticketRepo{s},
		Replies: replyRepo{s},
		Agents:  agentRepo{s},
		Locker:  locker{s},
		Health:  s,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	number := domain.FormatTicketNumber(s.seq)
	if _, exists := s.byNumber[number]; exists {
		return repository.ErrConflict
	}
	ticket.ID = uuid.NewString()
	ticket.TicketNumber = number
	s.tickets[ticket.ID] = ticket.Clone()
	s.byNumber[number] = ticket.ID
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.Clone(), nil
}

func (r ticketRepo) GetByNumber(_ context.Context, ticketNumber string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byNumber[ticketNumber]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.s.tickets[id].Clone(), nil
}

func (r ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	filter = filter.Normalized()
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}

	r.s.mu.RLock()
	matched := make([]domain.Ticket, 0, len(r.s.tickets))
	for _, t := range r.s.tickets {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		matched = append(matched, *t.Clone())
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], nil
}

func matchesSearch(t *domain.Ticket, search string) bool {
	for _, field := range []string{t.TicketNumber, t.Subject, t.Description, t.CustomerName, t.CustomerEmail} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (r ticketRepo) Stats(context.Context) (*domain.TicketStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var stats domain.TicketStats
	for _, t := range r.s.tickets {
		stats.Total++
		switch t.Status {
		case domain.TicketStatusNew:
			stats.New++
		case domain.TicketStatusPending:
			stats.Pending++
		case domain.TicketStatusResolved:
			stats.Resolved++
		}
		if t.LastReplyBy == domain.LastReplyByCustomer {
			stats.CustomerReplies++
		}
	}
	return &stats, nil
}

type replyRepo struct{ s *Store }

func (r replyRepo) GetByID(_ context.Context, id string) (*domain.Reply, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticketID, ok := r.s.replyTicket[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, reply := range r.s.replies[ticketID] {
		if reply.ID == id {
			cp := reply
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r replyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Reply, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	thread := r.s.replies[ticketID]
	if len(thread) == 0 {
		return nil, nil
	}
	return append([]domain.Reply(nil), thread...), nil
}

type agentRepo struct{ s *Store }

func (r agentRepo) Create(_ context.Context, agent *domain.Agent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(agent.Email))
	if _, exists := s.agentsByEmail[email]; exists {
		return repository.ErrConflict
	}
	now := time.Now().UTC()
	agent.ID = uuid.NewString()
	agent.Email = email
	agent.CreatedAt = now
	agent.UpdatedAt = now
	cp := *agent
	s.agents[agent.ID] = &cp
	s.agentsByEmail[email] = agent.ID
	return nil
}

func (r agentRepo) Update(_ context.Context, agent *domain.Agent) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[agent.ID]
	if !ok {
		return repository.ErrNotFound
	}
	email := strings.ToLower(strings.TrimSpace(agent.Email))
	if owner, taken := s.agentsByEmail[email]; taken && owner != agent.ID {
		return repository.ErrConflict
	}
	delete(s.agentsByEmail, existing.Email)
	agent.Email = email
	agent.UpdatedAt = time.Now().UTC()
	cp := *agent
	s.agents[agent.ID] = &cp
	s.agentsByEmail[email] = agent.ID
	return nil
}

func (r agentRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	agent, ok := r.s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *agent
	return &cp, nil
}

func (r agentRepo) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.agentsByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.s.agents[id]
	return &cp, nil
}
