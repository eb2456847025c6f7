package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads settings from the settings table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Provider = (*Repository)(nil)

// Load reads every setting row and parses the period rule configuration.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: query: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Settings{}, fmt.Errorf("settings: scan: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("settings: rows: %w", err)
	}

	return Parse(values)
}
