package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zonelab/geozone/internal/domain"
)

// PostgresUserRepository implements UserRepository using PostgreSQL. Rows are
// a read-mostly mirror of the external identity system.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// GetByID retrieves a user by ID, nil when unknown
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, display_name, active, roles, created_at, updated_at
		FROM users WHERE id = $1
	`
	user := &domain.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Active,
		&user.Roles,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", mapStoreErr(err))
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	return user, nil
}

// Upsert mirrors a user record from the identity system
func (r *PostgresUserRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, display_name, active, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			active = EXCLUDED.active,
			roles = EXCLUDED.roles,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.DisplayName,
		user.Active,
		user.Roles,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", mapStoreErr(err))
	}
	return nil
}

// Deactivate clears the active flag
func (r *PostgresUserRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE users SET active = false, updated_at = $2 WHERE id = $1`,
		id, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", mapStoreErr(err))
	}
	if result.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
