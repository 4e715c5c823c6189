package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-desk/internal/domain"
)

type agentRepository struct {
	pool *pgxpool.Pool
}

// NewAgentRepository instantiates the repository.
func NewAgentRepository(pool *pgxpool.Pool) AgentRepository {
	return &agentRepository{pool: pool}
}

func (r *agentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	const query = `
        INSERT INTO agents (name, email, password_hash)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`

	return classify(r.pool.QueryRow(ctx, query,
		agent.Name,
		strings.ToLower(agent.Email),
		agent.PasswordHash,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt))
}

func (r *agentRepository) Update(ctx context.Context, agent *domain.Agent) error {
	const query = `
        UPDATE agents SET name=$1, email=$2, password_hash=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`

	return classify(r.pool.QueryRow(ctx, query,
		agent.Name,
		strings.ToLower(agent.Email),
		agent.PasswordHash,
		agent.ID,
	).Scan(&agent.UpdatedAt))
}

func (r *agentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	const query = `SELECT id, name, email, password_hash, created_at, updated_at FROM agents WHERE id=$1`
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	return agent, classify(err)
}

func (r *agentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	const query = `SELECT id, name, email, password_hash, created_at, updated_at FROM agents WHERE email=$1`
	agent, err := scanAgent(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
	return agent, classify(err)
}

func scanAgent(row pgx.Row) (*domain.Agent, error) {
	var agent domain.Agent
	if err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Email,
		&agent.PasswordHash,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
