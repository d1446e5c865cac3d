package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/pkg/types"
)

// Identifiers live only in the owning topic's document collection; there is
// no relational row for them. Every operation therefore resolves the topic
// first, so a vanished topic surfaces as ErrNotFound rather than a write
// into a doomed collection.

const identifierExpressionField = "expression"

// PutIdentifier creates or replaces an identifier document under a topic.
// A missing id is assigned.
func (e *CatalogEngine) PutIdentifier(ctx context.Context, topicID string, ident *types.Identifier) (err error) {
	defer func(start time.Time) { observe("identifier", "put", start, err) }(time.Now())

	if ident == nil {
		return fmt.Errorf("%w: identifier is required", storage.ErrInvalidInput)
	}
	if ident.Expression == "" {
		return fmt.Errorf("%w: identifier expression is required", storage.ErrInvalidInput)
	}
	if ident.ID == "" {
		ident.ID = types.NewID()
	}

	key, err := e.topicCollectionKey(ctx, topicID)
	if err != nil {
		return err
	}

	body := map[string]interface{}{identifierExpressionField: ident.Expression}
	return e.docs.PutDocument(ctx, key, ident.ID, body)
}

// GetIdentifier retrieves an identifier by topic and id.
func (e *CatalogEngine) GetIdentifier(ctx context.Context, topicID, identifierID string) (ident *types.Identifier, err error) {
	defer func(start time.Time) { observe("identifier", "get", start, err) }(time.Now())

	key, err := e.topicCollectionKey(ctx, topicID)
	if err != nil {
		return nil, err
	}

	doc, err := e.docs.GetDocument(ctx, key, identifierID)
	if err != nil {
		return nil, err
	}

	return identifierFromDocument(doc), nil
}

// ListIdentifiers retrieves a page of a topic's identifiers ordered by id;
// UUIDv7 ids make that creation order.
func (e *CatalogEngine) ListIdentifiers(ctx context.Context, topicID string, opts storage.ListOptions) (page *storage.PaginatedResult[types.Identifier], err error) {
	defer func(start time.Time) { observe("identifier", "list", start, err) }(time.Now())

	key, err := e.topicCollectionKey(ctx, topicID)
	if err != nil {
		return nil, err
	}

	docs, err := e.docs.ListDocuments(ctx, key, opts)
	if err != nil {
		return nil, err
	}

	idents := make([]types.Identifier, 0, len(docs.Items))
	for i := range docs.Items {
		idents = append(idents, *identifierFromDocument(&docs.Items[i]))
	}

	return &storage.PaginatedResult[types.Identifier]{
		Items:    idents,
		Total:    docs.Total,
		Page:     docs.Page,
		PageSize: docs.PageSize,
		HasMore:  docs.HasMore,
	}, nil
}

// DeleteIdentifier removes an identifier document.
func (e *CatalogEngine) DeleteIdentifier(ctx context.Context, topicID, identifierID string) (err error) {
	defer func(start time.Time) { observe("identifier", "delete", start, err) }(time.Now())

	key, err := e.topicCollectionKey(ctx, topicID)
	if err != nil {
		return err
	}

	return e.docs.DeleteDocument(ctx, key, identifierID)
}

func identifierFromDocument(doc *types.Document) *types.Identifier {
	ident := &types.Identifier{ID: doc.ID}
	if expr, ok := doc.Body[identifierExpressionField].(string); ok {
		ident.Expression = expr
	}
	return ident
}
