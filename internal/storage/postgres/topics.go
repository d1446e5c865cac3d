package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// topicSelectColumns is the canonical SELECT column list for the topics
// table. It must match the scan order in scanTopicRow.
const topicSelectColumns = `id, name, description, created, updated`

// CreateTopic validates and persists a new topic. A missing ID and Created
// timestamp are assigned server-side; search vectors are maintained by the
// insert trigger.
func (s *MetadataStore) CreateTopic(ctx context.Context, topic *types.Topic) error {
	if err := storage.ValidateTopic(topic); err != nil {
		return err
	}

	if topic.ID == "" {
		topic.ID = types.NewID()
	}
	if topic.Created.IsZero() {
		topic.Created = time.Now().UTC()
	}

	const query = `
		INSERT INTO topics (id, name, description, created)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query,
		topic.ID,
		topic.Name,
		nullableString(topic.Description),
		topic.Created,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to create topic: %w", mapError(err))
	}

	return nil
}

// GetTopic retrieves a topic by id.
func (s *MetadataStore) GetTopic(ctx context.Context, id string) (*types.Topic, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: topic id is required", storage.ErrInvalidInput)
	}

	const query = `SELECT ` + topicSelectColumns + ` FROM topics WHERE id = $1`

	topic, err := scanTopic(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get topic: %w", mapError(err))
	}

	return topic, nil
}

// ListTopics retrieves topics with pagination and optional name filtering.
func (s *MetadataStore) ListTopics(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Topic], error) {
	opts.Normalize()

	var (
		where string
		args  []interface{}
	)
	if opts.Name != "" {
		where = "WHERE name = $1"
		args = append(args, opts.Name)
	}

	// SortBy/SortOrder are whitelist-validated by Normalize, safe to splice.
	query := fmt.Sprintf(
		`SELECT %s FROM topics %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		topicSelectColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder),
		len(args)+1, len(args)+2,
	)
	args = append(args, opts.Limit, opts.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list topics: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	topics, err := scanTopicRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan topics: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM topics"
	var countArgs []interface{}
	if opts.Name != "" {
		countQuery += " WHERE name = $1"
		countArgs = append(countArgs, opts.Name)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count topics: %w", mapError(err))
	}

	return &storage.PaginatedResult[types.Topic]{
		Items:    topics,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(topics) < total,
	}, nil
}

// UpdateTopic applies a partial update. The updated timestamp is refreshed
// by the row trigger, exactly once for the single UPDATE statement issued
// here regardless of how many fields change.
func (s *MetadataStore) UpdateTopic(ctx context.Context, id string, update types.TopicUpdate) (*types.Topic, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: topic id is required", storage.ErrInvalidInput)
	}
	if err := storage.ValidateTopicUpdate(update); err != nil {
		return nil, err
	}
	if update.IsZero() {
		return s.GetTopic(ctx, id)
	}

	var (
		sets []string
		args []interface{}
	)
	if update.Name != nil {
		args = append(args, *update.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	switch {
	case update.ClearDescription:
		sets = append(sets, "description = NULL")
	case update.Description != nil:
		args = append(args, *update.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE topics SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), topicSelectColumns,
	)

	topic, err := scanTopic(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to update topic: %w", mapError(err))
	}

	return topic, nil
}

// DeleteTopic removes a topic. The relational cascade removes every owned
// set and entity in the same transaction; document collections are cleaned
// up by the lifecycle synchronizer, not here.
func (s *MetadataStore) DeleteTopic(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: topic id is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete topic: %w", mapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// SearchTopics performs ranked tsvector full-text search over topic name
// and description. Name matches are weighted above description matches;
// rank ties are broken by created ascending so a restarted search at the
// same offset continues the same sequence.
func (s *MetadataStore) SearchTopics(ctx context.Context, opts storage.SearchOptions) (*storage.PaginatedResult[types.Topic], error) {
	opts.Normalize()

	// An empty query degrades to a plain list ordered by creation time.
	if strings.TrimSpace(opts.Query) == "" {
		return s.ListTopics(ctx, storage.ListOptions{
			Page:   1,
			Limit:  opts.Limit,
			SortBy: "created",
		})
	}

	const querySQL = `
		SELECT ` + topicSelectColumns + `
		FROM topics
		WHERE (name_tsv || description_tsv) @@ plainto_tsquery('english', $1)
		ORDER BY
			ts_rank(setweight(name_tsv, 'A') || setweight(description_tsv, 'B'),
			        plainto_tsquery('english', $1)) DESC,
			created ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, querySQL, opts.Query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: SearchTopics query %q: %w", opts.Query, mapError(err))
	}
	defer func() { _ = rows.Close() }()

	topics, err := scanTopicRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: SearchTopics scan: %w", err)
	}

	const countSQL = `
		SELECT COUNT(*)
		FROM topics
		WHERE (name_tsv || description_tsv) @@ plainto_tsquery('english', $1)
	`
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, opts.Query).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: SearchTopics count: %w", mapError(err))
	}

	page := 1
	if opts.Limit > 0 {
		page = (opts.Offset / opts.Limit) + 1
	}

	return &storage.PaginatedResult[types.Topic]{
		Items:    topics,
		Total:    total,
		Page:     page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset+len(topics) < total,
	}, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTopic scans a single topic row. The column order must match
// topicSelectColumns.
func scanTopic(row rowScanner) (*types.Topic, error) {
	var (
		topic       types.Topic
		description sql.NullString
		updated     sql.NullTime
	)

	err := row.Scan(&topic.ID, &topic.Name, &description, &topic.Created, &updated)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		topic.Description = description.String
	}
	if updated.Valid {
		t := updated.Time
		topic.Updated = &t
	}

	return &topic, nil
}

// scanTopicRows reads all rows returned by a query into a []types.Topic.
func scanTopicRows(rows *sql.Rows) ([]types.Topic, error) {
	var topics []types.Topic

	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *topic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return topics, nil
}
