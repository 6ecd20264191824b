package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/pkg/telemetry"
)

// PostgresHistoryRepository implements HistoryRepository using PostgreSQL.
// The table is insert-only; inserts happen inside zone transactions and this
// repository deliberately exposes no write methods.
type PostgresHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresHistoryRepository creates a new PostgresHistoryRepository
func NewPostgresHistoryRepository(pool *pgxpool.Pool) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{pool: pool}
}

// ListByZone retrieves a zone's status history, oldest first
func (r *PostgresHistoryRepository) ListByZone(ctx context.Context, zoneID string) ([]*domain.ZoneStatusHistory, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.history.list_by_zone")
	defer span.End()
	span.SetAttributes(attribute.String("zone_id", zoneID))

	query := `
		SELECT id, zone_id, prev_status, new_status, actor_id, COALESCE(note, ''), created_at
		FROM zone_status_history
		WHERE zone_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, zoneID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list status history: %w", mapStoreErr(err))
	}
	defer rows.Close()

	var records []*domain.ZoneStatusHistory
	for rows.Next() {
		record := &domain.ZoneStatusHistory{}
		var prev *string
		var newStatus string
		if err := rows.Scan(
			&record.ID,
			&record.ZoneID,
			&prev,
			&newStatus,
			&record.ActorID,
			&record.Note,
			&record.CreatedAt,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		record.NewStatus = domain.ZoneStatus(newStatus)
		if prev != nil {
			s := domain.ZoneStatus(*prev)
			record.PrevStatus = &s
		}
		records = append(records, record)
	}

	span.SetStatus(codes.Ok, "")
	return records, rows.Err()
}
