package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

const replyColumns = `id, ticket_id, sender, sender_name, message, created_at`

type replyRepository struct {
	pool *pgxpool.Pool
}

// NewReplyRepository builds repository.
func NewReplyRepository(pool *pgxpool.Pool) ReplyRepository {
	return &replyRepository{pool: pool}
}

func (r *replyRepository) GetByID(ctx context.Context, id string) (*domain.Reply, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	reply, err := scanReply(r.pool.QueryRow(ctx, `SELECT `+replyColumns+` FROM ticket_replies WHERE id=$1`, id))
	return reply, classify(err)
}

func (r *replyRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Reply, error) {
	if !validID(ticketID) {
		return nil, nil
	}
	const query = `SELECT ` + replyColumns + ` FROM ticket_replies WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []domain.Reply
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, classify(err)
		}
		result = append(result, *reply)
	}
	return result, classify(rows.Err())
}

func scanReply(row pgx.Row) (*domain.Reply, error) {
	var reply domain.Reply
	if err := row.Scan(
		&reply.ID,
		&reply.TicketID,
		&reply.Sender,
		&reply.SenderName,
		&reply.Message,
		&reply.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &reply, nil
}
