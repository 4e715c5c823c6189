package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

type ticketLocker struct {
	pool *pgxpool.Pool
}

// NewTicketLocker returns a TicketLocker backed by row-level locks.
func NewTicketLocker(pool *pgxpool.Pool) TicketLocker {
	return &ticketLocker{pool: pool}
}

func (l *ticketLocker) WithTicket(ctx context.Context, ticketID string, fn func(ctx context.Context, tx TicketTx) error) error {
	if !validID(ticketID) {
		return ErrNotFound
	}
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	ticket, err := scanTicket(tx.QueryRow(ctx, query, ticketID))
	if err != nil {
		return classify(err)
	}

	if err := fn(ctx, &pgTicketTx{tx: tx, ticket: ticket}); err != nil {
		return err
	}
	return classify(tx.Commit(ctx))
}

type pgTicketTx struct {
	tx     pgx.Tx
	ticket *domain.Ticket
}

func (t *pgTicketTx) Ticket() *domain.Ticket {
	return t.ticket.Clone()
}

func (t *pgTicketTx) LatestReply(ctx context.Context) (*domain.Reply, error) {
	const query = `SELECT ` + replyColumns + ` FROM ticket_replies WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT 1`
	reply, err := scanReply(t.tx.QueryRow(ctx, query, t.ticket.ID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return reply, nil
}

func (t *pgTicketTx) InsertReply(ctx context.Context, reply *domain.Reply) error {
	const query = `
        INSERT INTO ticket_replies (ticket_id, sender, sender_name, message, created_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id`
	reply.TicketID = t.ticket.ID
	return classify(t.tx.QueryRow(ctx, query,
		reply.TicketID,
		reply.Sender,
		reply.SenderName,
		reply.Message,
		reply.CreatedAt,
	).Scan(&reply.ID))
}

func (t *pgTicketTx) DeleteReply(ctx context.Context, replyID string) error {
	if !validID(replyID) {
		return ErrNotFound
	}
	cmd, err := t.tx.Exec(ctx, `DELETE FROM ticket_replies WHERE id=$1 AND ticket_id=$2`, replyID, t.ticket.ID)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTicketTx) UpdateTicket(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, priority=$2, last_reply_by=$3, updated_at=$4
        WHERE id=$5`
	cmd, err := t.tx.Exec(ctx, query,
		ticket.Status,
		ticket.Priority,
		ticket.LastReplyBy,
		ticket.UpdatedAt,
		t.ticket.ID,
	)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	t.ticket = ticket.Clone()
	return nil
}

func (t *pgTicketTx) DeleteTicket(ctx context.Context) error {
	// ticket_replies rows go with it through ON DELETE CASCADE.
	cmd, err := t.tx.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, t.ticket.ID)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type poolPinger struct {
	pool *pgxpool.Pool
}

func (p poolPinger) Ping(ctx context.Context) error {
	return classify(p.pool.Ping(ctx))
}

// NewPostgresRepos wires every repository against one pool.
func NewPostgresRepos(pool *pgxpool.Pool) *Repos {
	return &Repos{
		Tickets: NewTicketRepository(pool),
		Replies: NewReplyRepository(pool),
		Agents:  NewAgentRepository(pool),
		Locker:  NewTicketLocker(pool),
		Health:  poolPinger{pool: pool},
	}
}
