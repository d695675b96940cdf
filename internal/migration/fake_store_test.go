package migration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cacheshift/cacheshift/internal/store"
	"github.com/cacheshift/cacheshift/pkg/logger"
)

// testLogger returns a logger that keeps test output quiet.
func testLogger() *logger.Logger {
	log := logger.New("test", "0.0.0")
	log.DisableConsoleOutput()
	return log
}

// fakeStore is an in-memory store.Store used by the engine tests. Write
// and read failures can be injected per key, and writes can be made to
// panic to exercise batch-level fault handling.
type fakeStore struct {
	mu      sync.Mutex
	entries map[string]store.Entry

	failWrites  map[string]error
	failReads   map[string]error
	panicWrites map[string]bool
	pingErr     error

	writeCount int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:     make(map[string]store.Entry),
		failWrites:  make(map[string]error),
		failReads:   make(map[string]error),
		panicWrites: make(map[string]bool),
	}
}

func (f *fakeStore) seed(entries ...store.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.entries[e.Key()] = e
	}
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.entries))
	for k := range f.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeStore) Close() error                   { return nil }
func (f *fakeStore) Addr() string                   { return "fake:6379" }

func (f *fakeStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.entries {
		if globMatch(pattern, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) TypeOf(ctx context.Context, key string) (store.Kind, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[key]
	if !ok {
		return "", store.ErrKeyNotFound
	}
	return entry.Kind(), nil
}

func (f *fakeStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[key]
	if !ok {
		return 0, store.ErrKeyNotFound
	}
	return entry.TTL(), nil
}

func (f *fakeStore) MemoryUsage(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.entries[key]; !ok {
		return 0, store.ErrKeyNotFound
	}
	return 100, nil
}

func (f *fakeStore) ReadEntry(ctx context.Context, key string) (store.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failReads[key]; ok {
		return nil, err
	}
	entry, ok := f.entries[key]
	if !ok {
		return nil, store.ErrKeyNotFound
	}
	return entry, nil
}

func (f *fakeStore) WriteEntry(ctx context.Context, entry store.Entry, preserveTTL bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := entry.Key()
	if f.panicWrites[key] {
		panic(fmt.Sprintf("injected panic on %q", key))
	}
	if err, ok := f.failWrites[key]; ok {
		return err
	}

	if !preserveTTL {
		entry = stripTTL(entry)
	}
	f.entries[key] = entry
	f.writeCount++
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.entries, k)
	}
	return nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = store.NewStringEntry(key, value, ttl)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[key]
	if !ok {
		return "", store.ErrKeyNotFound
	}
	str, ok := entry.(store.StringEntry)
	if !ok {
		return "", fmt.Errorf("key %q holds a %s", key, entry.Kind())
	}
	return str.Value, nil
}

func (f *fakeStore) ServerInfo(ctx context.Context) (store.ServerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return store.ServerInfo{
		Version:  "7.2.0-fake",
		Mode:     "standalone",
		KeyCount: int64(len(f.entries)),
	}, nil
}

func stripTTL(entry store.Entry) store.Entry {
	switch e := entry.(type) {
	case store.StringEntry:
		return store.NewStringEntry(e.Key(), e.Value, 0)
	case store.HashEntry:
		return store.NewHashEntry(e.Key(), e.Fields, 0)
	case store.ListEntry:
		return store.NewListEntry(e.Key(), e.Values, 0)
	case store.SetEntry:
		return store.NewSetEntry(e.Key(), e.Members, 0)
	case store.SortedSetEntry:
		return store.NewSortedSetEntry(e.Key(), e.Members, 0)
	default:
		return entry
	}
}
