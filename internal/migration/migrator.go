package migration

import (
	"context"
	"fmt"
	"sync"

	"github.com/cacheshift/cacheshift/internal/store"
	"github.com/cacheshift/cacheshift/pkg/logger"
)

// BatchMigrator partitions the keyspace and copies each partition
// concurrently through a fixed-size worker pool.
type BatchMigrator struct {
	source  store.Store
	target  store.Store
	cfg     *Config
	tracker *StatusTracker
	log     *logger.Logger
}

// NewBatchMigrator creates a migrator reporting progress to tracker.
func NewBatchMigrator(source, target store.Store, cfg *Config, tracker *StatusTracker, log *logger.Logger) *BatchMigrator {
	return &BatchMigrator{
		source:  source,
		target:  target,
		cfg:     cfg,
		tracker: tracker,
		log:     log,
	}
}

type batch struct {
	index int
	keys  []string
}

// Migrate copies the given keys in batches. When the configured migration
// timeout elapses, in-flight batches finish but unstarted batches are
// counted as failed. Per-key failures never abort a batch.
func (m *BatchMigrator) Migrate(ctx context.Context, keys []string) (migrated, failed int, errs []string) {
	if len(keys) == 0 {
		return 0, 0, nil
	}

	if m.cfg.MigrationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.MigrationTimeout)
		defer cancel()
	}
	// The deadline gates batch pickup only; a batch that already started
	// finishes its writes so collection keys are never left half-rewritten.
	opCtx := context.WithoutCancel(ctx)

	batches := partition(keys, m.cfg.BatchSize)

	batchCh := make(chan batch, len(batches))
	for _, b := range batches {
		batchCh <- b
	}
	close(batchCh)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < m.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batchCh {
				var result batchResult
				if ctx.Err() != nil {
					result = batchResult{
						batchIndex: b.index,
						failed:     len(b.keys),
						errors: []string{fmt.Sprintf(
							"batch %d: not started, migration timeout exceeded", b.index)},
					}
				} else {
					result = m.transferBatch(opCtx, b)
				}

				m.tracker.Record(result.migrated, result.failed, result.batchIndex,
					result.errors, result.warnings)

				mu.Lock()
				migrated += result.migrated
				failed += result.failed
				errs = append(errs, result.errors...)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return migrated, failed, errs
}

// transferBatch copies one batch key by key. A worker-level panic marks
// the entire batch as failed; keys copied before the panic stay in place
// and converge on a re-run because every write overwrites its key.
func (m *BatchMigrator) transferBatch(ctx context.Context, b batch) (result batchResult) {
	result.batchIndex = b.index

	defer func() {
		if r := recover(); r != nil {
			result.migrated = 0
			result.failed = len(b.keys)
			result.errors = []string{fmt.Sprintf("batch %d: worker panic: %v", b.index, r)}
			m.log.Errorf("batch %d aborted by panic: %v", b.index, r)
		}
	}()

	for _, key := range b.keys {
		if err := m.transferKey(ctx, key); err != nil {
			result.failed++
			result.errors = append(result.errors, fmt.Sprintf("key %q: %v", key, err))
			continue
		}
		result.migrated++
	}

	return result
}

func (m *BatchMigrator) transferKey(ctx context.Context, key string) error {
	entry, err := m.source.ReadEntry(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			// Key expired or was deleted between enumeration and
			// transfer; nothing to copy.
			return nil
		}
		return err
	}

	return m.target.WriteEntry(ctx, entry, m.cfg.PreserveTTL)
}

// partition splits keys into ceil(len/size) fixed-size batches.
func partition(keys []string, size int) []batch {
	batches := make([]batch, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, batch{index: len(batches), keys: keys[start:end]})
	}
	return batches
}
