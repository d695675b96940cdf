package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheshift/cacheshift/internal/store"
)

func newTestMigrator(source, target *fakeStore, cfg *Config) (*BatchMigrator, *StatusTracker) {
	tracker := NewStatusTracker(0, 0, nil)
	return NewBatchMigrator(source, target, cfg, tracker, testLogger()), tracker
}

func TestMigrateCopiesAllTypes(t *testing.T) {
	source := newFakeStore()
	source.seed(
		store.NewStringEntry("user:1", "alice", 0),
		store.NewStringEntry("user:2", "bob", 0),
		store.NewStringEntry("user:3", "carol", 0),
		store.NewHashEntry("session:1", map[string]string{"ip": "10.0.0.1"}, time.Hour),
		store.NewHashEntry("session:2", map[string]string{"ip": "10.0.0.2"}, time.Hour),
	)
	target := newFakeStore()

	cfg := migrationConfig()
	cfg.BatchSize = 2
	cfg.Workers = 2

	migrator, tracker := newTestMigrator(source, target, cfg)
	migrated, failed, errs := migrator.Migrate(context.Background(), source.keys())
	tracker.Close()

	assert.Equal(t, 5, migrated)
	assert.Zero(t, failed)
	assert.Empty(t, errs)
	assert.Equal(t, source.keys(), target.keys())

	entry, err := target.ReadEntry(context.Background(), "session:1")
	require.NoError(t, err)
	hash, ok := entry.(store.HashEntry)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", hash.Fields["ip"])
	assert.Equal(t, time.Hour, hash.TTL())
}

func TestMigrateEmptyKeyspace(t *testing.T) {
	migrator, tracker := newTestMigrator(newFakeStore(), newFakeStore(), migrationConfig())

	migrated, failed, errs := migrator.Migrate(context.Background(), nil)
	tracker.Close()

	assert.Zero(t, migrated)
	assert.Zero(t, failed)
	assert.Nil(t, errs)
}

func TestMigratePerKeyFailure(t *testing.T) {
	source := newFakeStore()
	source.seed(
		store.NewStringEntry("a", "1", 0),
		store.NewStringEntry("b", "2", 0),
		store.NewStringEntry("c", "3", 0),
	)
	target := newFakeStore()
	target.failWrites["b"] = errors.New("write refused")

	migrator, tracker := newTestMigrator(source, target, migrationConfig())
	migrated, failed, errs := migrator.Migrate(context.Background(), source.keys())
	tracker.Close()

	assert.Equal(t, 2, migrated)
	assert.Equal(t, 1, failed)
	require.Len(t, errs, 1)
	// The error names the failing key
	assert.Contains(t, errs[0], `key "b"`)
	assert.Contains(t, errs[0], "write refused")

	// The other keys in the same batch still made it across
	assert.Equal(t, []string{"a", "c"}, target.keys())
}

func TestMigrateSkipsKeysExpiredSinceEnumeration(t *testing.T) {
	source := newFakeStore()
	source.seed(store.NewStringEntry("live", "v", 0))
	target := newFakeStore()

	migrator, tracker := newTestMigrator(source, target, migrationConfig())
	// "ghost" was enumerated but no longer exists at the source
	migrated, failed, errs := migrator.Migrate(context.Background(), []string{"ghost", "live"})
	tracker.Close()

	assert.Equal(t, 1, migrated)
	assert.Zero(t, failed)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"live"}, target.keys())
}

func TestMigrateWorkerPanicFailsWholeBatch(t *testing.T) {
	source := newFakeStore()
	source.seed(
		store.NewStringEntry("a", "1", 0),
		store.NewStringEntry("b", "2", 0),
		store.NewStringEntry("c", "3", 0),
		store.NewStringEntry("d", "4", 0),
	)
	target := newFakeStore()
	target.panicWrites["b"] = true

	cfg := migrationConfig()
	cfg.BatchSize = 2
	cfg.Workers = 1

	migrator, tracker := newTestMigrator(source, target, cfg)
	migrated, failed, errs := migrator.Migrate(context.Background(), source.keys())
	tracker.Close()

	// Batch [a b] is counted fully failed, batch [c d] is unaffected
	assert.Equal(t, 2, migrated)
	assert.Equal(t, 2, failed)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "worker panic")
	// "a" was written before the panic; it stays and a re-run overwrites it
	assert.Equal(t, []string{"a", "c", "d"}, target.keys())
}

func TestMigrateTimeoutFailsUnstartedBatches(t *testing.T) {
	source := newFakeStore()
	for i := 0; i < 10; i++ {
		source.seed(store.NewStringEntry(fmt.Sprintf("k%d", i), "v", 0))
	}
	target := newFakeStore()

	cfg := migrationConfig()
	cfg.BatchSize = 2
	cfg.Workers = 1
	cfg.MigrationTimeout = time.Nanosecond

	migrator, tracker := newTestMigrator(source, target, cfg)
	time.Sleep(time.Millisecond) // let the deadline pass before pickup
	migrated, failed, errs := migrator.Migrate(context.Background(), source.keys())
	tracker.Close()

	assert.Zero(t, migrated)
	assert.Equal(t, 10, failed)
	require.Len(t, errs, 5)
	for _, e := range errs {
		assert.Contains(t, e, "migration timeout exceeded")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	source := newFakeStore()
	source.seed(
		store.NewStringEntry("user:1", "alice", 0),
		store.NewListEntry("queue:jobs", []string{"a", "b", "c"}, 0),
		store.NewSortedSetEntry("board", []store.ScoredMember{
			{Member: "p1", Score: 10},
			{Member: "p2", Score: 20},
		}, 0),
	)
	target := newFakeStore()

	migrator, tracker := newTestMigrator(source, target, migrationConfig())

	for run := 0; run < 2; run++ {
		migrated, failed, _ := migrator.Migrate(context.Background(), source.keys())
		assert.Equal(t, 3, migrated, "run %d", run)
		assert.Zero(t, failed, "run %d", run)
	}
	tracker.Close()

	entry, err := target.ReadEntry(context.Background(), "queue:jobs")
	require.NoError(t, err)
	list, ok := entry.(store.ListEntry)
	require.True(t, ok)
	// Re-running rewrites, never appends
	assert.Equal(t, []string{"a", "b", "c"}, list.Values)
}

func TestMigratePreserveTTLDisabled(t *testing.T) {
	source := newFakeStore()
	source.seed(store.NewStringEntry("session:1", "v", time.Hour))
	target := newFakeStore()

	cfg := migrationConfig()
	cfg.PreserveTTL = false

	migrator, tracker := newTestMigrator(source, target, cfg)
	migrated, _, _ := migrator.Migrate(context.Background(), source.keys())
	tracker.Close()

	require.Equal(t, 1, migrated)
	ttl, err := target.TTL(context.Background(), "session:1")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)
}

func TestPartition(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}

	batches := partition(keys, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0].keys)
	assert.Equal(t, []string{"c", "d"}, batches[1].keys)
	assert.Equal(t, []string{"e"}, batches[2].keys)
	assert.Equal(t, 2, batches[2].index)

	assert.Len(t, partition(keys, 10), 1)
	assert.Empty(t, partition(nil, 10))
}
