package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

func newTicket(subject string) *domain.Ticket {
	now := time.Now().UTC()
	return &domain.Ticket{
		CustomerName:  "Jane",
		CustomerEmail: "jane@x.com",
		Subject:       subject,
		Description:   "details",
		Priority:      domain.TicketPriorityMedium,
		Status:        domain.TicketStatusNew,
		LastReplyBy:   domain.LastReplyByNone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	repos := New().Repos()
	ctx := context.Background()

	first := newTicket("one")
	second := newTicket("two")
	require.NoError(t, repos.Tickets.Create(ctx, first))
	require.NoError(t, repos.Tickets.Create(ctx, second))

	assert.Equal(t, "TKT-000001", first.TicketNumber)
	assert.Equal(t, "TKT-000002", second.TicketNumber)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := repos.Tickets.GetByNumber(ctx, "TKT-000002")
	require.NoError(t, err)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("GetByNumber mismatch (-want +got):\n%s", diff)
	}
}

func TestWithTicketCommitsAtomically(t *testing.T) {
	repos := New().Repos()
	ctx := context.Background()
	ticket := newTicket("atomic")
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	boom := errors.New("boom")
	err := repos.Locker.WithTicket(ctx, ticket.ID, func(ctx context.Context, tx repository.TicketTx) error {
		reply := &domain.Reply{Sender: domain.SenderAgent, SenderName: "Sam", Message: "hi", CreatedAt: time.Now()}
		require.NoError(t, tx.InsertReply(ctx, reply))
		updated := tx.Ticket()
		updated.LastReplyBy = domain.LastReplyByAgent
		require.NoError(t, tx.UpdateTicket(ctx, updated))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	replies, err := repos.Replies.ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, replies)
	stored, err := repos.Tickets.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LastReplyByNone, stored.LastReplyBy)
}

func TestWithTicketDiscardsOnCancelledContext(t *testing.T) {
	repos := New().Repos()
	ticket := newTicket("cancel")
	require.NoError(t, repos.Tickets.Create(context.Background(), ticket))

	ctx, cancel := context.WithCancel(context.Background())
	err := repos.Locker.WithTicket(ctx, ticket.ID, func(ctx context.Context, tx repository.TicketTx) error {
		reply := &domain.Reply{Sender: domain.SenderCustomer, Message: "late", CreatedAt: time.Now()}
		require.NoError(t, tx.InsertReply(ctx, reply))
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	replies, err := repos.Replies.ListByTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestWithTicketUnknownTicket(t *testing.T) {
	repos := New().Repos()
	err := repos.Locker.WithTicket(context.Background(), "missing", func(context.Context, repository.TicketTx) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteTicketCascadesReplies(t *testing.T) {
	repos := New().Repos()
	ctx := context.Background()
	ticket := newTicket("cascade")
	require.NoError(t, repos.Tickets.Create(ctx, ticket))

	var replyID string
	require.NoError(t, repos.Locker.WithTicket(ctx, ticket.ID, func(ctx context.Context, tx repository.TicketTx) error {
		reply := &domain.Reply{Sender: domain.SenderCustomer, Message: "hello", CreatedAt: time.Now()}
		if err := tx.InsertReply(ctx, reply); err != nil {
			return err
		}
		replyID = reply.ID
		return nil
	}))

	require.NoError(t, repos.Locker.WithTicket(ctx, ticket.ID, func(ctx context.Context, tx repository.TicketTx) error {
		return tx.DeleteTicket(ctx)
	}))

	_, err := repos.Tickets.GetByID(ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Tickets.GetByNumber(ctx, ticket.TicketNumber)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repos.Replies.GetByID(ctx, replyID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListWithFilter(t *testing.T) {
	repos := New().Repos()
	ctx := context.Background()

	a := newTicket("Login broken")
	b := newTicket("Billing question")
	b.Priority = domain.TicketPriorityHigh
	b.UpdatedAt = a.UpdatedAt.Add(time.Second)
	require.NoError(t, repos.Tickets.Create(ctx, a))
	require.NoError(t, repos.Tickets.Create(ctx, b))

	all, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "most recently updated first")

	high := domain.TicketPriorityHigh
	filtered, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Priority: &high})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, b.ID, filtered[0].ID)

	search := "LOGIN"
	found, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{SearchTerm: &search})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	paged, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, a.ID, paged[0].ID)
}

func TestAgentEmailUnique(t *testing.T) {
	repos := New().Repos()
	ctx := context.Background()

	require.NoError(t, repos.Agents.Create(ctx, &domain.Agent{Name: "Sam", Email: "Sam@Support.io", PasswordHash: "x"}))
	err := repos.Agents.Create(ctx, &domain.Agent{Name: "Sam 2", Email: "sam@support.io", PasswordHash: "y"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	agent, err := repos.Agents.GetByEmail(ctx, "SAM@support.io")
	require.NoError(t, err)
	assert.Equal(t, "Sam", agent.Name)
}
