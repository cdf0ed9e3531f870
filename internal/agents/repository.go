package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository defines the interface for persona storage. Every operation is
// scoped to the owning user.
type Repository interface {
	Create(ctx context.Context, agent *Agent) (*Agent, error)
	GetByID(ctx context.Context, userID, id string) (*Agent, error)
	ListByUser(ctx context.Context, userID string) ([]*Agent, error)
	Update(ctx context.Context, agent *Agent) error
	UpdateVoice(ctx context.Context, userID, id string, voice Voice) error
	Delete(ctx context.Context, userID, id string) error
}

const agentColumns = `id, user_id, display_name, business_name, industry, services, tone,
		system_prompt, greeting, voice_gender, voice_pitch, voice_speed, created_at, updated_at`

// PostgresRepository stores agent personas in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("agents: pgx querier required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new persona row.
func (r *PostgresRepository) Create(ctx context.Context, agent *Agent) (*Agent, error) {
	query := `
		INSERT INTO agents (user_id, display_name, business_name, industry, services, tone,
			system_prompt, greeting, voice_gender, voice_pitch, voice_speed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query,
		agent.UserID,
		agent.DisplayName,
		agent.BusinessName,
		agent.Industry,
		agent.Services,
		agent.Tone,
		agent.SystemPrompt,
		agent.Greeting,
		agent.Voice.Gender,
		agent.Voice.Pitch,
		agent.Voice.Speed,
	).Scan(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt); err != nil {
		return nil, fmt.Errorf("agents: insert failed: %w", err)
	}
	return agent, nil
}

// GetByID fetches a persona scoped to its owner.
func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*Agent, error) {
	query := fmt.Sprintf(`SELECT %s FROM agents WHERE id = $1 AND user_id = $2`, agentColumns)
	agent, err := scanAgent(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("agents: select failed: %w", err)
	}
	return agent, nil
}

// ListByUser returns the user's personas, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Agent, error) {
	query := fmt.Sprintf(`SELECT %s FROM agents WHERE user_id = $1 ORDER BY created_at DESC`, agentColumns)
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("agents: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("agents: scan failed: %w", err)
		}
		out = append(out, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agents: list rows failed: %w", err)
	}
	return out, nil
}

// Update rewrites the persona fields, scoped to the owner.
func (r *PostgresRepository) Update(ctx context.Context, agent *Agent) error {
	query := `
		UPDATE agents
		SET display_name = $1, business_name = $2, industry = $3, services = $4, tone = $5,
			system_prompt = $6, greeting = $7, updated_at = now()
		WHERE id = $8 AND user_id = $9
	`
	tag, err := r.db.Exec(ctx, query,
		agent.DisplayName,
		agent.BusinessName,
		agent.Industry,
		agent.Services,
		agent.Tone,
		agent.SystemPrompt,
		agent.Greeting,
		agent.ID,
		agent.UserID,
	)
	if err != nil {
		return fmt.Errorf("agents: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// UpdateVoice persists only the voice preferences, scoped to the owner.
func (r *PostgresRepository) UpdateVoice(ctx context.Context, userID, id string, voice Voice) error {
	query := `
		UPDATE agents
		SET voice_gender = $1, voice_pitch = $2, voice_speed = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5
	`
	tag, err := r.db.Exec(ctx, query, voice.Gender, voice.Pitch, voice.Speed, id, userID)
	if err != nil {
		return fmt.Errorf("agents: update voice failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

// Delete removes a persona and, via cascade, its conversations.
func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM agents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("agents: delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var agent Agent
	if err := row.Scan(
		&agent.ID,
		&agent.UserID,
		&agent.DisplayName,
		&agent.BusinessName,
		&agent.Industry,
		&agent.Services,
		&agent.Tone,
		&agent.SystemPrompt,
		&agent.Greeting,
		&agent.Voice.Gender,
		&agent.Voice.Pitch,
		&agent.Voice.Speed,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agent, nil
}
