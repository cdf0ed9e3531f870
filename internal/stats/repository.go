package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Statistics aggregates a user's call activity across their agents.
type Statistics struct {
	TotalCalls         int     `json:"total_calls"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	TotalMessages      int     `json:"total_messages"`
	TotalLeads         int     `json:"total_leads"`
}

// SystemStats is the platform-wide admin view.
type SystemStats struct {
	TotalUsers  int `json:"total_users"`
	TotalAgents int `json:"total_agents"`
	TotalCalls  int `json:"total_calls"`
	TotalLeads  int `json:"total_leads"`
}

// AdminUser is one row of the admin user listing.
type AdminUser struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	AgentCount int        `json:"agent_count"`
}

// Repository runs the aggregate reporting queries. It deliberately uses a
// plain database/sql handle: these are read-only rollups that see far less
// traffic than the call path, and a separate handle keeps reporting load off
// the pgx pool.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps a database handle for reporting queries.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		panic("stats: sql db required")
	}
	return &Repository{db: db}
}

// UserStatistics returns call rollups across the user's agents. A non-empty
// agentID narrows to one persona; the agent still has to belong to the user.
func (r *Repository) UserStatistics(ctx context.Context, userID, agentID string) (*Statistics, error) {
	where := `WHERE a.user_id = $1`
	args := []any{userID}
	if agentID != "" {
		where += ` AND c.agent_id = $2`
		args = append(args, agentID)
	}

	query := fmt.Sprintf(`
		SELECT COUNT(c.id),
			COALESCE(AVG(c.duration_seconds) FILTER (WHERE c.ended_at IS NOT NULL), 0),
			COALESCE(SUM(c.message_count), 0),
			COUNT(c.id) FILTER (WHERE LOWER(c.sentiment) = 'positive')
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		%s
	`, where)

	var s Statistics
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.TotalCalls, &s.AvgDurationSeconds, &s.TotalMessages, &s.TotalLeads)
	if err != nil {
		return nil, fmt.Errorf("stats: user statistics failed: %w", err)
	}
	return &s, nil
}

// SystemStats returns the platform-wide totals for the admin dashboard.
func (r *Repository) SystemStats(ctx context.Context) (*SystemStats, error) {
	query := `
		SELECT (SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM agents),
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM conversations WHERE LOWER(sentiment) = 'positive')
	`
	var s SystemStats
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.TotalUsers, &s.TotalAgents, &s.TotalCalls, &s.TotalLeads)
	if err != nil {
		return nil, fmt.Errorf("stats: system stats failed: %w", err)
	}
	return &s, nil
}

// ListUsers returns every account with its agent count, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]AdminUser, error) {
	query := `
		SELECT u.id, u.email, u.full_name, u.created_at, u.last_login, COUNT(a.id)
		FROM users u
		LEFT JOIN agents a ON a.user_id = u.id
		GROUP BY u.id, u.email, u.full_name, u.created_at, u.last_login
		ORDER BY u.created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("stats: list users failed: %w", err)
	}
	defer rows.Close()

	var out []AdminUser
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.LastLogin, &u.AgentCount); err != nil {
			return nil, fmt.Errorf("stats: scan user failed: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats: user rows failed: %w", err)
	}
	return out, nil
}
