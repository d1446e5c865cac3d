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

// topicSelectColumns is the canonical SELECT column list for the topics
// table. It must match the scan order in scanTopic.
const topicSelectColumns = `id, name, description, created, updated`

// CreateTopic validates and persists a new topic.
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
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		topic.ID,
		topic.Name,
		nullableString(topic.Description),
		topic.Created,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to create topic: %w", mapError(err))
	}

	return nil
}

// GetTopic retrieves a topic by id.
func (s *MetadataStore) GetTopic(ctx context.Context, id string) (*types.Topic, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: topic id is required", storage.ErrInvalidInput)
	}

	const query = `SELECT ` + topicSelectColumns + ` FROM topics WHERE id = ?`

	topic, err := scanTopic(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get topic: %w", mapError(err))
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
		where = "WHERE name = ?"
		args = append(args, opts.Name)
	}

	// SortBy/SortOrder are whitelist-validated by Normalize, safe to splice.
	query := fmt.Sprintf(
		`SELECT %s FROM topics %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		topicSelectColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder),
	)
	args = append(args, opts.Limit, opts.Offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list topics: %w", mapError(err))
	}
	defer func() { _ = rows.Close() }()

	topics, err := scanTopicRows(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan topics: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM topics"
	var countArgs []interface{}
	if opts.Name != "" {
		countQuery += " WHERE name = ?"
		countArgs = append(countArgs, opts.Name)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count topics: %w", mapError(err))
	}

	return &storage.PaginatedResult[types.Topic]{
		Items:    topics,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(topics) < total,
	}, nil
}

// UpdateTopic applies a partial update, refreshing the updated timestamp in
// the same UPDATE statement.
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

	query := fmt.Sprintf(`UPDATE topics SET %s WHERE id = ?`, strings.Join(sets, ", "))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to update topic: %w", mapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}

	return s.GetTopic(ctx, id)
}

// DeleteTopic removes a topic; the relational cascade removes owned sets
// and entities. Document collections are cleaned up by the lifecycle
// synchronizer.
func (s *MetadataStore) DeleteTopic(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: topic id is required", storage.ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete topic: %w", mapError(err))
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

// SearchTopics performs FTS5-backed full-text search over topic name and
// description. FTS5 rank values are negative (more negative == better
// match), so ordering by rank ASC gives best results first; created ASC
// breaks ties so a restarted search continues the same sequence.
func (s *MetadataStore) SearchTopics(ctx context.Context, opts storage.SearchOptions) (*storage.PaginatedResult[types.Topic], error) {
	opts.Normalize()

	if strings.TrimSpace(opts.Query) == "" {
		return s.ListTopics(ctx, storage.ListOptions{
			Page:   1,
			Limit:  opts.Limit,
			SortBy: "created",
		})
	}

	ftsQuery := sanitizeFTSQuery(opts.Query)

	const querySQL = `
		SELECT t.id, t.name, t.description, t.created, t.updated
		FROM topics_fts fts
		JOIN topics t ON t.rowid = fts.rowid
		WHERE topics_fts MATCH ?
		ORDER BY rank, t.created ASC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, querySQL, ftsQuery, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("sqlite: SearchTopics MATCH %q: %w", opts.Query, mapError(err))
	}
	defer func() { _ = rows.Close() }()

	topics, err := scanTopicRows(rows)
	if err != nil {
		return nil, fmt.Errorf("sqlite: SearchTopics scan: %w", err)
	}

	const countSQL = `
		SELECT COUNT(*)
		FROM topics_fts fts
		JOIN topics t ON t.rowid = fts.rowid
		WHERE topics_fts MATCH ?
	`
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, ftsQuery).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: SearchTopics count: %w", mapError(err))
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

// sanitizeFTSQuery converts free-form user input into a safe FTS5 match
// expression. FTS5 syntax is fragile: an unbalanced quote or stray operator
// keyword causes a syntax error. Each word is quoted and OR'd so any term
// can match.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	if len(terms) == 0 {
		return `""`
	}
	return strings.Join(terms, " OR ")
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
