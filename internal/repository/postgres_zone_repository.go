package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zonelab/geozone/internal/domain"
	"github.com/zonelab/geozone/pkg/telemetry"
)

// PostgresZoneRepository implements ZoneRepository using PostgreSQL
type PostgresZoneRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresZoneRepository creates a new PostgresZoneRepository
func NewPostgresZoneRepository(pool *pgxpool.Pool) *PostgresZoneRepository {
	return &PostgresZoneRepository{pool: pool}
}

// zoneColumns defines the columns to select for zones
const zoneColumns = `id, owner_id, name,
	COALESCE(description, '') as description,
	boundary,
	COALESCE(color, '') as color,
	is_public, tags, status, status_changed_at, status_changed_by,
	area, version, created_at, updated_at`

const insertHistorySQL = `
	INSERT INTO zone_status_history (id, zone_id, prev_status, new_status, actor_id, note, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// mapStoreErr translates driver-level failures into the store taxonomy.
// Deadline and connection timeouts become ErrUnavailable so callers can retry
// with backoff instead of hanging.
func mapStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.ErrUnavailable
	}
	if pgconn.Timeout(err) {
		return domain.ErrUnavailable
	}
	return err
}

// scanZone scans a row into a Zone struct
func scanZone(row pgx.Row) (*domain.Zone, error) {
	zone := &domain.Zone{}
	var boundaryJSON []byte
	var status string

	err := row.Scan(
		&zone.ID,
		&zone.OwnerID,
		&zone.Name,
		&zone.Description,
		&boundaryJSON,
		&zone.Color,
		&zone.IsPublic,
		&zone.Tags,
		&status,
		&zone.StatusChangedAt,
		&zone.StatusChangedBy,
		&zone.Area,
		&zone.Version,
		&zone.CreatedAt,
		&zone.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	zone.Status = domain.ZoneStatus(status)
	if boundaryJSON != nil {
		if err := json.Unmarshal(boundaryJSON, &zone.Boundary); err != nil {
			return nil, fmt.Errorf("failed to decode zone boundary: %w", err)
		}
	}
	if zone.Tags == nil {
		zone.Tags = []string{}
	}
	return zone, nil
}

// Create persists a new zone draft and its creation audit record in one
// transaction: either both rows commit or neither does.
func (r *PostgresZoneRepository) Create(ctx context.Context, zone *domain.Zone, record *domain.ZoneStatusHistory) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("zone_id", zone.ID),
		attribute.String("owner_id", zone.OwnerID),
	)

	boundaryJSON, err := json.Marshal(zone.Boundary)
	if err != nil {
		return fmt.Errorf("failed to encode zone boundary: %w", err)
	}
	bounds := zone.Boundary.Bounds()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin create: %w", mapStoreErr(err))
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO zones (
			id, owner_id, name, description, boundary, color, is_public, tags,
			status, status_changed_at, status_changed_by, area,
			min_lat, min_lon, max_lat, max_lon, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`
	_, err = tx.Exec(ctx, query,
		zone.ID,
		zone.OwnerID,
		zone.Name,
		zone.Description,
		boundaryJSON,
		zone.Color,
		zone.IsPublic,
		zone.Tags,
		zone.Status.String(),
		zone.StatusChangedAt,
		zone.StatusChangedBy,
		zone.Area,
		bounds.MinLat,
		bounds.MinLon,
		bounds.MaxLat,
		bounds.MaxLon,
		zone.Version,
		zone.CreatedAt,
		zone.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create zone: %w", mapStoreErr(err))
	}

	if err := insertHistoryTx(ctx, tx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit create: %w", mapStoreErr(err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a zone by ID
func (r *PostgresZoneRepository) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.get_by_id")
	defer span.End()
	span.SetAttributes(attribute.String("zone_id", id))

	query := fmt.Sprintf(`SELECT %s FROM zones WHERE id = $1`, zoneColumns)
	zone, err := scanZone(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrZoneNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get zone: %w", mapStoreErr(err))
	}

	span.SetStatus(codes.Ok, "")
	return zone, nil
}

// Update persists metadata/geometry changes guarded by the expected version
func (r *PostgresZoneRepository) Update(ctx context.Context, zone *domain.Zone, expectedVersion int64) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("zone_id", zone.ID),
		attribute.Int64("expected_version", expectedVersion),
	)

	boundaryJSON, err := json.Marshal(zone.Boundary)
	if err != nil {
		return fmt.Errorf("failed to encode zone boundary: %w", err)
	}
	bounds := zone.Boundary.Bounds()
	now := time.Now()

	query := `
		UPDATE zones SET
			name = $3, description = $4, boundary = $5, color = $6,
			is_public = $7, tags = $8, area = $9,
			min_lat = $10, min_lon = $11, max_lat = $12, max_lon = $13,
			version = version + 1, updated_at = $14
		WHERE id = $1 AND version = $2
	`
	result, err := r.pool.Exec(ctx, query,
		zone.ID,
		expectedVersion,
		zone.Name,
		zone.Description,
		boundaryJSON,
		zone.Color,
		zone.IsPublic,
		zone.Tags,
		zone.Area,
		bounds.MinLat,
		bounds.MinLon,
		bounds.MaxLat,
		bounds.MaxLon,
		now,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update zone: %w", mapStoreErr(err))
	}

	if result.RowsAffected() == 0 {
		err := r.versionMismatch(ctx, zone.ID)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	zone.Version = expectedVersion + 1
	zone.UpdatedAt = now
	span.SetStatus(codes.Ok, "")
	return nil
}

// Transition applies a status change and appends its audit record as a single
// atomic unit. If either half fails nothing is committed.
func (r *PostgresZoneRepository) Transition(ctx context.Context, zone *domain.Zone, expectedVersion int64, record *domain.ZoneStatusHistory) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("zone_id", zone.ID),
		attribute.String("new_status", record.NewStatus.String()),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transition: %w", mapStoreErr(err))
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE zones SET
			status = $3, status_changed_at = $4, status_changed_by = $5,
			version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
	`
	result, err := tx.Exec(ctx, query,
		zone.ID,
		expectedVersion,
		record.NewStatus.String(),
		record.CreatedAt,
		record.ActorID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to transition zone: %w", mapStoreErr(err))
	}
	if result.RowsAffected() == 0 {
		err := r.versionMismatch(ctx, zone.ID)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := insertHistoryTx(ctx, tx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit transition: %w", mapStoreErr(err))
	}

	zone.Status = record.NewStatus
	zone.StatusChangedAt = record.CreatedAt
	zone.StatusChangedBy = record.ActorID
	zone.Version = expectedVersion + 1
	zone.UpdatedAt = record.CreatedAt
	span.SetStatus(codes.Ok, "")
	return nil
}

// HardDelete purges the zone, its grants and its audit trail. Reserved for
// administrative use; the workflow "deleted" status is a soft state.
func (r *PostgresZoneRepository) HardDelete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.hard_delete")
	defer span.End()
	span.SetAttributes(attribute.String("zone_id", id))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin purge: %w", mapStoreErr(err))
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM zone_permissions WHERE zone_id = $1`, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to purge zone grants: %w", mapStoreErr(err))
	}
	if _, err := tx.Exec(ctx, `DELETE FROM zone_status_history WHERE zone_id = $1`, id); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to purge zone history: %w", mapStoreErr(err))
	}

	result, err := tx.Exec(ctx, `DELETE FROM zones WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to purge zone: %w", mapStoreErr(err))
	}
	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrZoneNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit purge: %w", mapStoreErr(err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// List fetches one keyset page of zones matching the query. The visibility
// predicate is part of the WHERE clause, so the limit applies post-filter.
func (r *PostgresZoneRepository) List(ctx context.Context, query *ZoneListQuery) ([]*domain.Zone, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.zone.list")
	defer span.End()
	span.SetAttributes(
		attribute.String("sort_by", query.SortBy),
		attribute.Int("limit", query.Limit),
	)

	var conditions []string
	var args []interface{}
	argIndex := 1

	f := query.Filter
	if !f.Viewer.IsAdmin() {
		conditions = append(conditions, visibilityPredicate(argIndex))
		args = append(args, f.Viewer.UserID)
		argIndex++
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = s.String()
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, statuses)
		argIndex++
	}
	if f.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, f.OwnerID)
		argIndex++
	}
	if len(f.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags && $%d", argIndex))
		args = append(args, f.Tags)
		argIndex++
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+f.Search+"%")
		argIndex++
	}
	if f.BBox != nil {
		conditions = append(conditions, fmt.Sprintf(
			"max_lat >= $%d AND min_lat <= $%d AND max_lon >= $%d AND min_lon <= $%d",
			argIndex, argIndex+1, argIndex+2, argIndex+3,
		))
		args = append(args, f.BBox.MinLat, f.BBox.MaxLat, f.BBox.MinLon, f.BBox.MaxLon)
		argIndex += 4
	}

	sortExpr := sortExpression(query.SortBy)
	if query.After != nil {
		// Keyset predicate: past the last-seen key, ties resolved by id which
		// always ascends regardless of sort direction
		cmp := ">"
		if query.Desc {
			cmp = "<"
		}
		conditions = append(conditions, fmt.Sprintf(
			"(%s %s $%d OR (%s = $%d AND id > $%d))",
			sortExpr, cmp, argIndex, sortExpr, argIndex, argIndex+1,
		))
		args = append(args, query.After.Key, query.After.ID)
		argIndex += 2
	}

	whereClause := "TRUE"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}
	direction := "ASC"
	if query.Desc {
		direction = "DESC"
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM zones
		WHERE %s
		ORDER BY %s %s, id ASC
		LIMIT $%d
	`, zoneColumns, whereClause, sortExpr, direction, argIndex)
	args = append(args, query.Limit)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list zones: %w", mapStoreErr(err))
	}
	defer rows.Close()

	zones, err := scanZones(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to scan zones: %w", mapStoreErr(err))
	}

	span.SetStatus(codes.Ok, "")
	return zones, nil
}

// ListByOwner retrieves all zones owned by a user
func (r *PostgresZoneRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Zone, error) {
	query := fmt.Sprintf(`SELECT %s FROM zones WHERE owner_id = $1 ORDER BY id`, zoneColumns)
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones by owner: %w", mapStoreErr(err))
	}
	defer rows.Close()
	return scanZones(rows)
}

// ReassignOwner moves every zone of one owner to another, bumping versions
func (r *PostgresZoneRepository) ReassignOwner(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	query := `
		UPDATE zones
		SET owner_id = $2, version = version + 1, updated_at = $3
		WHERE owner_id = $1
	`
	result, err := r.pool.Exec(ctx, query, fromUserID, toUserID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to reassign zones: %w", mapStoreErr(err))
	}
	return result.RowsAffected(), nil
}

// versionMismatch distinguishes a concurrency conflict from a missing zone
// after a guarded update touched no rows.
func (r *PostgresZoneRepository) versionMismatch(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM zones WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check zone existence: %w", mapStoreErr(err))
	}
	if exists {
		return domain.ErrVersionConflict
	}
	return domain.ErrZoneNotFound
}

// insertHistoryTx appends an audit record inside an open transaction
func insertHistoryTx(ctx context.Context, tx pgx.Tx, record *domain.ZoneStatusHistory) error {
	var prev *string
	if record.PrevStatus != nil {
		s := record.PrevStatus.String()
		prev = &s
	}
	_, err := tx.Exec(ctx, insertHistorySQL,
		record.ID,
		record.ZoneID,
		prev,
		record.NewStatus.String(),
		record.ActorID,
		record.Note,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", mapStoreErr(err))
	}
	return nil
}

// scanZones scans multiple rows into Zone structs
func scanZones(rows pgx.Rows) ([]*domain.Zone, error) {
	var zones []*domain.Zone
	for rows.Next() {
		zone, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

// sortExpression maps a sort key to its SQL expression. Status sorts by its
// fixed workflow ordinal, not alphabetically.
// visibilityPredicate restricts rows to zones the viewer may see, mirroring
// domain.ResolveCapabilities: ownership, then an explicit grant taken
// verbatim, then the public fallback. The fallback is suppressed whenever any
// grant row exists for the viewer, so an all-false grant is a denial here
// too. The single placeholder is the viewer's user id.
func visibilityPredicate(arg int) string {
	return fmt.Sprintf(`(
		owner_id = $%d
		OR EXISTS (
			SELECT 1 FROM zone_permissions p
			WHERE p.zone_id = zones.id AND p.user_id = $%d AND p.can_view
		)
		OR (is_public AND status = 'published' AND NOT EXISTS (
			SELECT 1 FROM zone_permissions p
			WHERE p.zone_id = zones.id AND p.user_id = $%d
		))
	)`, arg, arg, arg)
}

func sortExpression(sortBy string) string {
	switch sortBy {
	case "name":
		return "name"
	case "updated_at":
		return "updated_at"
	case "area":
		return "area"
	case "status":
		return "CASE status WHEN 'in_progress' THEN 0 WHEN 'published' THEN 1 ELSE 2 END"
	default:
		return "created_at"
	}
}
