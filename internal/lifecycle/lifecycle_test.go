package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/topical/internal/journal"
	"github.com/scrypster/topical/internal/storage"
	"github.com/scrypster/topical/internal/storage/docstore"
	"github.com/scrypster/topical/internal/storage/sqlite"
	"github.com/scrypster/topical/pkg/types"
)

// flakyDocStore fails DeleteCollection while broken is set.
type flakyDocStore struct {
	storage.DocumentStore
	broken bool
}

func (f *flakyDocStore) DeleteCollection(ctx context.Context, key string) error {
	if f.broken {
		return errors.New("document store unavailable")
	}
	return f.DocumentStore.DeleteCollection(ctx, key)
}

// captureSink records published events.
type captureSink struct {
	events []types.Event
}

func (c *captureSink) Publish(event types.Event) {
	c.events = append(c.events, event)
}

type fixture struct {
	meta   *sqlite.MetadataStore
	docs   *flakyDocStore
	writer *journal.Writer
	sink   *captureSink
	sync   *Synchronizer
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	meta, err := sqlite.NewMetadataStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	docs, err := docstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = docs.Close() })

	dir := t.TempDir()
	flaky := &flakyDocStore{DocumentStore: docs}
	writer := journal.NewWriter(dir)
	sink := &captureSink{}

	sync := NewSynchronizer(meta, flaky, writer, sink, Options{
		CleanupAttempts: 2,
		CleanupBackoff:  time.Millisecond,
	})

	return &fixture{meta: meta, docs: flaky, writer: writer, sink: sink, sync: sync, dir: dir}
}

// seedTopic creates a topic with two sets and a document in each collection.
func seedTopic(t *testing.T, f *fixture) (*types.Topic, []string) {
	t.Helper()
	ctx := context.Background()

	topic := &types.Topic{Name: "Fauna"}
	require.NoError(t, f.meta.CreateTopic(ctx, topic))

	keys := []string{storage.TopicCollectionKey(topic.ID, topic.Name)}
	for _, name := range []string{"Birds", "Mammals"} {
		set := &types.Set{TopicID: topic.ID, Name: name}
		require.NoError(t, f.meta.CreateSet(ctx, set))
		keys = append(keys, storage.SetCollectionKey(set.ID, set.Name))
	}

	for _, key := range keys {
		require.NoError(t, f.docs.PutDocument(ctx, key, "doc-1", map[string]interface{}{"seed": true}))
	}

	return topic, keys
}

func TestDeleteTopicDropsAllCollections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topic, keys := seedTopic(t, f)

	result, err := f.sync.DeleteTopic(ctx, topic.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDocumentsDeleted, result.State)
	assert.Empty(t, result.Pending)

	_, err = f.meta.GetTopic(ctx, topic.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Cascade removed the sets.
	sets, err := f.meta.ListSets(ctx, topic.ID, storage.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, sets.Items)

	// All three collections are gone.
	remaining, err := f.docs.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	_ = keys

	require.NotEmpty(t, f.sink.events)
	assert.Equal(t, types.EventCleanupDone, f.sink.events[len(f.sink.events)-1].Kind)
}

func TestDeleteTopicUnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.sync.DeleteTopic(context.Background(), types.NewID())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteSetDropsCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topic := &types.Topic{Name: "Fauna"}
	require.NoError(t, f.meta.CreateTopic(ctx, topic))
	set := &types.Set{TopicID: topic.ID, Name: "Birds"}
	require.NoError(t, f.meta.CreateSet(ctx, set))

	key := storage.SetCollectionKey(set.ID, set.Name)
	require.NoError(t, f.docs.PutDocument(ctx, key, "doc-1", nil))

	result, err := f.sync.DeleteSet(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDocumentsDeleted, result.State)

	_, err = f.meta.GetSet(ctx, set.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	remaining, err := f.docs.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestCleanupFailureJournalsAndCommits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topic, _ := seedTopic(t, f)
	f.docs.broken = true

	result, err := f.sync.DeleteTopic(ctx, topic.ID)
	require.NoError(t, err, "cleanup failure must not fail the delete")
	assert.Equal(t, StateCleanupFailed, result.State)
	assert.Len(t, result.Pending, 3)

	// Metadata delete committed regardless.
	_, err = f.meta.GetTopic(ctx, topic.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// One journal record per surviving collection.
	entries, err := os.ReadDir(filepath.Join(f.dir, "cleanup"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	require.NotEmpty(t, f.sink.events)
	assert.Equal(t, types.EventCleanupFailed, f.sink.events[len(f.sink.events)-1].Kind)
}

func TestReplayRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.docs.PutDocument(ctx, "topic_fauna", "doc-1", nil))

	rec := journal.Record{CollectionKey: "topic_fauna", Kind: "topic", OwnerID: "owner", Attempts: 2}

	f.docs.broken = true
	err := f.sync.ReplayRecord(ctx, rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrCleanupPending)

	// Failure re-journals with a bumped attempt count.
	entries, err := os.ReadDir(filepath.Join(f.dir, "cleanup"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	f.docs.broken = false
	require.NoError(t, f.sync.ReplayRecord(ctx, rec))

	keys, err := f.docs.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestReconcilerScanDropsOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	topic := &types.Topic{Name: "Fauna"}
	require.NoError(t, f.meta.CreateTopic(ctx, topic))
	liveKey := storage.TopicCollectionKey(topic.ID, topic.Name)
	require.NoError(t, f.docs.PutDocument(ctx, liveKey, "doc-1", nil))

	// Orphan: prefixed key with no matching metadata row.
	require.NoError(t, f.docs.PutDocument(ctx, "topic_ghost", "doc-1", nil))
	// Unknown prefix: the scan must not touch it.
	require.NoError(t, f.docs.PutDocument(ctx, "scratch", "doc-1", nil))

	rec := NewReconciler(f.sync, f.dir, ReconcilerOptions{ScanRate: 1000})
	require.NoError(t, rec.ScanOnce(ctx))

	keys, err := f.docs.ListCollections(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{liveKey, "scratch"}, keys)
}

func TestReconcilerReplaysJournalOnStart(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.docs.PutDocument(ctx, "topic_stale", "doc-1", nil))
	require.NoError(t, f.writer.Append(journal.Record{CollectionKey: "topic_stale", Kind: "topic", OwnerID: "owner"}))

	rec := NewReconciler(f.sync, f.dir, ReconcilerOptions{Interval: time.Hour, ScanRate: 1000})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = rec.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		keys, err := f.docs.ListCollections(ctx)
		return err == nil && len(keys) == 0
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
