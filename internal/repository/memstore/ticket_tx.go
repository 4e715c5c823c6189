package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

type locker struct{ s *Store }

func (l locker) WithTicket(ctx context.Context, ticketID string, fn func(ctx context.Context, tx repository.TicketTx) error) error {
	unlock, err := l.s.ticketLocks.Lock(ctx, ticketID)
	if err != nil {
		return err
	}
	defer unlock()

	l.s.mu.RLock()
	current, ok := l.s.tickets[ticketID]
	var snapshot *domain.Ticket
	if ok {
		snapshot = current.Clone()
	}
	l.s.mu.RUnlock()
	if !ok {
		return repository.ErrNotFound
	}

	tx := &memTx{s: l.s, ticket: snapshot, deleted: make(map[string]bool)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	// A cancelled caller never commits, matching a rolled back SQL transaction.
	if err := ctx.Err(); err != nil {
		return err
	}

	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	tx.commit()
	return nil
}

// memTx stages writes until commit so readers never observe partial work.
type memTx struct {
	s        *Store
	ticket   *domain.Ticket
	inserted []domain.Reply
	deleted  map[string]bool
	updated  bool
	drop     bool
}

func (t *memTx) Ticket() *domain.Ticket {
	return t.ticket.Clone()
}

func (t *memTx) thread() []domain.Reply {
	t.s.mu.RLock()
	committed := t.s.replies[t.ticket.ID]
	out := make([]domain.Reply, 0, len(committed)+len(t.inserted))
	for _, r := range committed {
		if !t.deleted[r.ID] {
			out = append(out, r)
		}
	}
	t.s.mu.RUnlock()
	for _, r := range t.inserted {
		if !t.deleted[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

func (t *memTx) LatestReply(context.Context) (*domain.Reply, error) {
	var latest *domain.Reply
	for _, r := range t.thread() {
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			cp := r
			latest = &cp
		}
	}
	return latest, nil
}

func (t *memTx) InsertReply(_ context.Context, reply *domain.Reply) error {
	reply.ID = uuid.NewString()
	reply.TicketID = t.ticket.ID
	t.inserted = append(t.inserted, *reply)
	return nil
}

func (t *memTx) DeleteReply(_ context.Context, replyID string) error {
	for _, r := range t.thread() {
		if r.ID == replyID {
			t.deleted[replyID] = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *memTx) UpdateTicket(_ context.Context, ticket *domain.Ticket) error {
	next := ticket.Clone()
	next.ID = t.ticket.ID
	next.TicketNumber = t.ticket.TicketNumber
	t.ticket = next
	t.updated = true
	return nil
}

func (t *memTx) DeleteTicket(context.Context) error {
	t.drop = true
	return nil
}

// commit applies staged writes; caller holds s.mu for writing.
func (t *memTx) commit() {
	s := t.s
	id := t.ticket.ID
	if t.drop {
		for _, r := range s.replies[id] {
			delete(s.replyTicket, r.ID)
		}
		delete(s.replies, id)
		delete(s.byNumber, t.ticket.TicketNumber)
		delete(s.tickets, id)
		return
	}

	if len(t.deleted) > 0 || len(t.inserted) > 0 {
		thread := make([]domain.Reply, 0, len(s.replies[id])+len(t.inserted))
		for _, r := range s.replies[id] {
			if t.deleted[r.ID] {
				delete(s.replyTicket, r.ID)
				continue
			}
			thread = append(thread, r)
		}
		for _, r := range t.inserted {
			if t.deleted[r.ID] {
				continue
			}
			thread = append(thread, r)
			s.replyTicket[r.ID] = id
		}
		sort.SliceStable(thread, func(i, j int) bool {
			return thread[i].CreatedAt.Before(thread[j].CreatedAt)
		})
		s.replies[id] = thread
	}
	if t.updated {
		s.tickets[id] = t.ticket.Clone()
	}
}
