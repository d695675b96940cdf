package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrKeyNotFound is returned when a key does not exist in the store.
var ErrKeyNotFound = errors.New("key not found")

// ServerInfo is a summary of one store's server, parsed from INFO.
type ServerInfo struct {
	Version         string
	Mode            string
	KeyCount        int64
	UsedMemoryBytes int64
}

// Store is a connection to one Redis-protocol-compatible cache store.
// Implementations must be safe for concurrent use by multiple workers.
type Store interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Close releases the connection.
	Close() error
	// Addr returns the address the store was connected with.
	Addr() string

	// Keys returns all keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// TypeOf returns the native type of a key, or ErrKeyNotFound.
	TypeOf(ctx context.Context, key string) (Kind, error)
	// TTL returns the remaining time to live of a key. Zero means the key
	// is persistent. Returns ErrKeyNotFound for missing keys.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// MemoryUsage returns the approximate memory footprint of a key in bytes.
	MemoryUsage(ctx context.Context, key string) (int64, error)

	// ReadEntry snapshots a key into a typed entry.
	ReadEntry(ctx context.Context, key string) (Entry, error)
	// WriteEntry writes a typed entry. Collection types (hash, list, set,
	// sorted set) replace any pre-existing key so repeated writes converge
	// to the same state. When preserveTTL is false the written key is
	// persistent regardless of the entry's TTL.
	WriteEntry(ctx context.Context, entry Entry, preserveTTL bool) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Set and Get are the primitive string operations used by the
	// performance comparator's disposable-key benchmark.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)

	// ServerInfo reports server version, mode and keyspace size.
	ServerInfo(ctx context.Context) (ServerInfo, error)
}

// kindOfTypeName maps a store-reported type name onto a Kind.
func kindOfTypeName(name string) (Kind, error) {
	switch name {
	case "string":
		return KindString, nil
	case "hash":
		return KindHash, nil
	case "list":
		return KindList, nil
	case "set":
		return KindSet, nil
	case "zset":
		return KindSortedSet, nil
	case "none":
		return "", ErrKeyNotFound
	default:
		return "", fmt.Errorf("unsupported key type %q", name)
	}
}
