package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// setSelectColumns is the canonical SELECT column list for the sets table.
// It must match the scan order in scanSet.
const setSelectColumns = `id, topic_id, name, description, created, updated`

// CreateSet persists a new set under an existing topic. The foreign key on
// topic_id surfaces a missing topic as ErrConflict before any row is
// persisted.
func (s *MetadataStore) CreateSet(ctx context.Context, set *types.Set) error {
	if err := storage.ValidateSet(set); err != nil {
		return err
	}

	if set.ID == "" {
		set.ID = types.NewID()
	}
	if set.Created.IsZero() {
		set.Created = time.Now().UTC()
	}

	const query = `
		INSERT INTO sets (id, topic_id, name, description, created)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		set.ID,
		set.TopicID,
		set.Name,
		nullableString(set.Description),
		set.Created,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create set: %w", mapError(err))
	}

	return nil
}

// GetSet retrieves a set by id.
func (s *MetadataStore) GetSet(ctx context.Context, id string) (*types.Set, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: set id is required", storage.ErrInvalidInput)
	}

	const query = `SELECT ` + setSelectColumns + ` FROM sets WHERE id = ?`

	set, err := scanSet(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get set: %w", mapError(err))
	}

	return set, nil
}

// ListSets retrieves sets with pagination, optionally scoped to a topic.
func (s *MetadataStore) ListSets(ctx context.Context, topicID string, opts storage.ListOptions) (*storage.PaginatedResult[types.Set], error) {
	opts.Normalize()

	var (
		conds []string
		args  []interface{}
	)
	if topicID != "" {
		conds = append(conds, "topic_id = ?")
		args = append(args, topicID)
	}
	if opts.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, opts.Name)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT %s FROM sets %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		setSelectColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder),
	)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM sets %s`, where)
	countArgs := append([]interface{}{}, args...)
	args = append(args, opts.Limit, opts.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list sets: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	sets, err := scanSetRows(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan sets: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count sets: %w", mapError(err))
	}

	return &storage.PaginatedResult[types.Set]{
		Items:    sets,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(sets) < total,
	}, nil
}

// UpdateSet applies a partial update, refreshing the updated timestamp in
// the same UPDATE statement.
func (s *MetadataStore) UpdateSet(ctx context.Context, id string, update types.SetUpdate) (*types.Set, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: set id is required", storage.ErrInvalidInput)
	}
	if err := storage.ValidateSetUpdate(update); err != nil {
		return nil, err
	}
	if update.IsZero() {
		return s.GetSet(ctx, id)
	}

	var (
		sets []string
		args []interface{}
	)
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	switch {
	case update.ClearDescription:
		sets = append(sets, "description = NULL")
	case update.Description != nil:
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	sets = append(sets, "updated = ?")
	args = append(args, touchTime())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE sets SET %s WHERE id = ?`, strings.Join(sets, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to update set: %w", mapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}

	return s.GetSet(ctx, id)
}

// DeleteSet removes a set; the relational cascade removes its entities.
func (s *MetadataStore) DeleteSet(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: set id is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete set: %w", mapError(err))
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

// scanSet scans a single set row. The column order must match
// setSelectColumns.
func scanSet(row rowScanner) (*types.Set, error) {
	var (
		set         types.Set
		description sql.NullString
		updated     sql.NullTime
	)

	err := row.Scan(&set.ID, &set.TopicID, &set.Name, &description, &set.Created, &updated)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		set.Description = description.String
	}
	if updated.Valid {
		t := updated.Time
		set.Updated = &t
	}

	return &set, nil
}

// scanSetRows reads all rows returned by a query into a []types.Set.
func scanSetRows(rows *sql.Rows) ([]types.Set, error) {
	var sets []types.Set

	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *set)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sets, nil
}
