package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/topical/internal/journal"
	"github.com/scrypster/topical/internal/lifecycle"
	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/internal/storage/docstore"
	"github.com/scrypster/topical/internal/storage/sqlite"
	"github.com/scrypster/topical/pkg/types"
)

type captureSink struct {
	events []types.Event
}

func (c *captureSink) Publish(event types.Event) {
	c.events = append(c.events, event)
}

func (c *captureSink) kinds() []types.EventKind {
	kinds := make([]types.EventKind, 0, len(c.events))
	for _, e := range c.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func newTestEngine(t *testing.T) (*CatalogEngine, *docstore.Store, *captureSink) {
	t.Helper()

	meta, err := sqlite.NewMetadataStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	docs, err := docstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	sink := &captureSink{}
	writer := journal.NewWriter(t.TempDir())
	sync := lifecycle.NewSynchronizer(meta, docs, writer, sink, lifecycle.Options{
		CleanupAttempts: 2,
		CleanupBackoff:  time.Millisecond,
	})

	eng, err := New(meta, docs, sync, sink)
	require.NoError(t, err)

	return eng, docs, sink
}

func TestCreateAndSearchTopics(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateTopic(ctx, "Fauna", "Animal taxonomy and classification")
	require.NoError(t, err)
	_, err = eng.CreateTopic(ctx, "Minerals", "Rocks and crystal structures")
	require.NoError(t, err)

	page, err := eng.SearchTopics(ctx, storage.SearchOptions{Query: "taxonomy"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Fauna", page.Items[0].Name)
}

func TestCreateTopicValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	_, err := eng.CreateTopic(context.Background(), "", "no name")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestCreateSetMissingTopic(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateSet(ctx, types.NewID(), "Orphans", "")
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Nothing was persisted.
	page, err := eng.ListSets(ctx, "", storage.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestEntityMirroredToSetCollection(t *testing.T) {
	eng, docs, _ := newTestEngine(t)
	ctx := context.Background()

	topic, err := eng.CreateTopic(ctx, "Fauna", "")
	require.NoError(t, err)
	set, err := eng.CreateSet(ctx, topic.ID, "Birds", "")
	require.NoError(t, err)

	payload := map[string]interface{}{"species": "Corvus corax", "wingspan_cm": float64(130)}
	entity, err := eng.CreateEntity(ctx, set.ID, payload)
	require.NoError(t, err)
	require.NotEmpty(t, entity.ID)

	// The mirror is readable by two-hop addressing.
	doc, err := eng.GetEntityDocument(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, payload, doc.Body)

	// And by raw collection access.
	key := storage.SetCollectionKey(set.ID, set.Name)
	raw, err := docs.GetDocument(ctx, key, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, payload, raw.Body)
}

func TestUpdateEntityRefreshesMirror(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	topic, err := eng.CreateTopic(ctx, "Fauna", "")
	require.NoError(t, err)
	set, err := eng.CreateSet(ctx, topic.ID, "Birds", "")
	require.NoError(t, err)
	entity, err := eng.CreateEntity(ctx, set.ID, map[string]interface{}{"v": float64(1)})
	require.NoError(t, err)

	_, err = eng.UpdateEntity(ctx, entity.ID, types.EntityUpdate{
		Payload: map[string]interface{}{"v": float64(2)},
	})
	require.NoError(t, err)

	doc, err := eng.GetEntityDocument(ctx, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(2), doc.Body["v"])
}

func TestDeleteEntityRemovesMirror(t *testing.T) {
	eng, docs, _ := newTestEngine(t)
	ctx := context.Background()

	topic, err := eng.CreateTopic(ctx, "Fauna", "")
	require.NoError(t, err)
	set, err := eng.CreateSet(ctx, topic.ID, "Birds", "")
	require.NoError(t, err)
	entity, err := eng.CreateEntity(ctx, set.ID, map[string]interface{}{"v": float64(1)})
	require.NoError(t, err)

	require.NoError(t, eng.DeleteEntity(ctx, entity.ID))

	_, err = eng.GetEntity(ctx, entity.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	key := storage.SetCollectionKey(set.ID, set.Name)
	_, err = docs.GetDocument(ctx, key, entity.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTopicCascade(t *testing.T) {
	eng, docs, _ := newTestEngine(t)
	ctx := context.Background()

	topic, err := eng.CreateTopic(ctx, "Animals", "")
	require.NoError(t, err)
	set, err := eng.CreateSet(ctx, topic.ID, "Mammals", "")
	require.NoError(t, err)
	_, err = eng.CreateEntity(ctx, set.ID, map[string]interface{}{"species": "Lynx lynx"})
	require.NoError(t, err)

	result, err := eng.DeleteTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateDocumentsDeleted, result.State)

	// Set row is gone via the relational cascade.
	_, err = eng.GetSet(ctx, set.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Set collection is gone via the synchronizer.
	keys, err := docs.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIdentifierLifecycle(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	topic, err := eng.CreateTopic(ctx, "Fauna", "")
	require.NoError(t, err)

	ident := &types.Identifier{Expression: `species =~ "^Corvus"`}
	require.NoError(t, eng.PutIdentifier(ctx, topic.ID, ident))
	require.NotEmpty(t, ident.ID)

	got, err := eng.GetIdentifier(ctx, topic.ID, ident.ID)
	require.NoError(t, err)
	assert.Equal(t, ident.Expression, got.Expression)

	page, err := eng.ListIdentifiers(ctx, topic.ID, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ident.ID, page.Items[0].ID)

	require.NoError(t, eng.DeleteIdentifier(ctx, topic.ID, ident.ID))
	_, err = eng.GetIdentifier(ctx, topic.ID, ident.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIdentifierMissingTopic(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	err := eng.PutIdentifier(ctx, types.NewID(), &types.Identifier{Expression: "x > 1"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = eng.ListIdentifiers(ctx, types.NewID(), storage.ListOptions{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPutIdentifierValidation(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	ctx := context.Background()

	topic, err := eng.CreateTopic(ctx, "Fauna", "")
	require.NoError(t, err)

	err = eng.PutIdentifier(ctx, topic.ID, &types.Identifier{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = eng.PutIdentifier(ctx, topic.ID, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestEngineEmitsEvents(t *testing.T) {
	eng, _, sink := newTestEngine(t)
	ctx := context.Background()

	topic, err := eng.CreateTopic(ctx, "Fauna", "")
	require.NoError(t, err)
	name := "Renamed"
	_, err = eng.UpdateTopic(ctx, topic.ID, types.TopicUpdate{Name: &name})
	require.NoError(t, err)
	_, err = eng.DeleteTopic(ctx, topic.ID)
	require.NoError(t, err)

	kinds := sink.kinds()
	assert.Contains(t, kinds, types.EventTopicCreated)
	assert.Contains(t, kinds, types.EventTopicUpdated)
	assert.Contains(t, kinds, types.EventTopicDeleted)
	assert.Contains(t, kinds, types.EventCleanupDone)
}
