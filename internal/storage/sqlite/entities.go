package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// entitySelectColumns is the canonical SELECT column list for the entities
// table. It must match the scan order in scanEntity.
const entitySelectColumns = `id, set_id, payload, created, updated`

// CreateEntity persists a new entity under an existing set. A missing set
// surfaces as ErrConflict via the foreign key.
func (s *MetadataStore) CreateEntity(ctx context.Context, entity *types.Entity) error {
	if err := storage.ValidateEntity(entity); err != nil {
		return err
	}

	if entity.ID == "" {
		entity.ID = types.NewID()
	}
	if entity.Created.IsZero() {
		entity.Created = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(entity.Payload)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal payload: %w", err)
	}

	const query = `
		INSERT INTO entities (id, set_id, payload, created)
		VALUES (?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query, entity.ID, entity.SetID, string(payloadJSON), entity.Created)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create entity: %w", mapError(err))
	}

	return nil
}

// GetEntity retrieves an entity by id.
func (s *MetadataStore) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: entity id is required", storage.ErrInvalidInput)
	}

	const query = `SELECT ` + entitySelectColumns + ` FROM entities WHERE id = ?`

	entity, err := scanEntity(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get entity: %w", mapError(err))
	}

	return entity, nil
}

// ListEntities retrieves a set's entities with pagination.
func (s *MetadataStore) ListEntities(ctx context.Context, setID string, opts storage.ListOptions) (*storage.PaginatedResult[types.Entity], error) {
	if setID == "" {
		return nil, fmt.Errorf("%w: set id is required", storage.ErrInvalidInput)
	}
	opts.Normalize()

	// Entities have no name column; fall back to created ordering.
	if opts.SortBy == "name" {
		opts.SortBy = "created"
	}

	query := fmt.Sprintf(
		`SELECT %s FROM entities WHERE set_id = ? ORDER BY %s %s LIMIT ? OFFSET ?`,
		entitySelectColumns, opts.SortBy, strings.ToUpper(opts.SortOrder),
	)

	rows, err := s.db.QueryContext(ctx, query, setID, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list entities: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	entities, err := scanEntityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan entities: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE set_id = ?`, setID).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count entities: %w", mapError(err))
	}

	return &storage.PaginatedResult[types.Entity]{
		Items:    entities,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(entities) < total,
	}, nil
}

// UpdateEntity replaces the payload, refreshing the updated timestamp in
// the same UPDATE statement.
func (s *MetadataStore) UpdateEntity(ctx context.Context, id string, update types.EntityUpdate) (*types.Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: entity id is required", storage.ErrInvalidInput)
	}
	if update.Payload == nil {
		return s.GetEntity(ctx, id)
	}

	payloadJSON, err := json.Marshal(update.Payload)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to marshal payload: %w", err)
	}

	const query = `UPDATE entities SET payload = ?, updated = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, string(payloadJSON), touchTime(), id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to update entity: %w", mapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}

	return s.GetEntity(ctx, id)
}

// DeleteEntity removes an entity row.
func (s *MetadataStore) DeleteEntity(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: entity id is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete entity: %w", mapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// scanEntity scans a single entity row. The column order must match
// entitySelectColumns.
func scanEntity(row rowScanner) (*types.Entity, error) {
	var (
		entity      types.Entity
		payloadJSON string
		updated     sql.NullTime
	)

	err := row.Scan(&entity.ID, &entity.SetID, &payloadJSON, &entity.Created, &updated)
	if err != nil {
		return nil, err
	}

	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &entity.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if updated.Valid {
		t := updated.Time
		entity.Updated = &t
	}

	return &entity, nil
}

// scanEntityRows reads all rows returned by a query into a []types.Entity.
func scanEntityRows(rows *sql.Rows) ([]types.Entity, error) {
	var entities []types.Entity

	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entities, nil
}
