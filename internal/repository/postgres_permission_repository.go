package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/pkg/telemetry"
)

// PostgresPermissionRepository implements PermissionRepository using PostgreSQL
type PostgresPermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPermissionRepository creates a new PostgresPermissionRepository
func NewPostgresPermissionRepository(pool *pgxpool.Pool) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{pool: pool}
}

const permissionColumns = `zone_id, user_id, can_view, can_edit, can_delete, can_share, created_at, updated_at`

func scanPermission(row pgx.Row) (*domain.ZonePermission, error) {
	perm := &domain.ZonePermission{}
	err := row.Scan(
		&perm.ZoneID,
		&perm.UserID,
		&perm.CanView,
		&perm.CanEdit,
		&perm.CanDelete,
		&perm.CanShare,
		&perm.CreatedAt,
		&perm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return perm, nil
}

// Get retrieves the grant for a (zone, user) pair, nil when absent
func (r *PostgresPermissionRepository) Get(ctx context.Context, zoneID, userID string) (*domain.ZonePermission, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.permission.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("zone_id", zoneID),
		attribute.String("user_id", userID),
	)

	query := fmt.Sprintf(`SELECT %s FROM zone_permissions WHERE zone_id = $1 AND user_id = $2`, permissionColumns)
	perm, err := scanPermission(r.pool.QueryRow(ctx, query, zoneID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get permission grant: %w", mapStoreErr(err))
	}

	span.SetStatus(codes.Ok, "")
	return perm, nil
}

// Upsert creates or replaces the grant for a (zone, user) pair. The pair is
// the primary key, so at most one record can exist.
func (r *PostgresPermissionRepository) Upsert(ctx context.Context, perm *domain.ZonePermission) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.permission.upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("zone_id", perm.ZoneID),
		attribute.String("user_id", perm.UserID),
	)

	query := `
		INSERT INTO zone_permissions (zone_id, user_id, can_view, can_edit, can_delete, can_share, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (zone_id, user_id) DO UPDATE SET
			can_view = EXCLUDED.can_view,
			can_edit = EXCLUDED.can_edit,
			can_delete = EXCLUDED.can_delete,
			can_share = EXCLUDED.can_share,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		perm.ZoneID,
		perm.UserID,
		perm.CanView,
		perm.CanEdit,
		perm.CanDelete,
		perm.CanShare,
		perm.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to upsert permission grant: %w", mapStoreErr(err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListByZone retrieves all grants on a zone
func (r *PostgresPermissionRepository) ListByZone(ctx context.Context, zoneID string) ([]*domain.ZonePermission, error) {
	query := fmt.Sprintf(`SELECT %s FROM zone_permissions WHERE zone_id = $1 ORDER BY user_id`, permissionColumns)
	rows, err := r.pool.Query(ctx, query, zoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission grants: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var perms []*domain.ZonePermission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission grant: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// DeleteByUser removes every grant held by a user
func (r *PostgresPermissionRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM zone_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete permission grants: %w", mapStoreErr(err))
	}
	return nil
}
