package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// go-redis reports TTLs of -1 for persistent keys and -2 for missing keys.
const (
	ttlPersistent = time.Duration(-1)
	ttlMissing    = time.Duration(-2)
)

// Redis is a Store backed by a single Redis-protocol server.
type Redis struct {
	client   *redis.Client
	endpoint Endpoint
}

// Connect establishes a connection to a Redis-compatible store and
// verifies it with a ping before returning.
func Connect(endpoint Endpoint) (*Redis, error) {
	password, err := endpoint.ResolvePassword()
	if err != nil {
		return nil, err
	}

	options := &redis.Options{
		Addr:     endpoint.Addr(),
		Username: endpoint.Username,
		Password: password,
		DB:       endpoint.DB,
	}

	if endpoint.TLS {
		options.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: endpoint.TLSSkipVerify,
		}
	}

	client := redis.NewClient(options)

	// Test the connection with a timeout
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to %s: %v", endpoint, err)
	}

	return &Redis{client: client, endpoint: endpoint}, nil
}

// Ping verifies the connection is alive.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Addr returns the host:port address of the store.
func (r *Redis) Addr() string {
	return r.endpoint.Addr()
}

// Keys returns all keys matching a glob pattern.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	keys, err := r.client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("error fetching keys for pattern %q: %v", pattern, err)
	}
	return keys, nil
}

// TypeOf returns the native type of a key.
func (r *Redis) TypeOf(ctx context.Context, key string) (Kind, error) {
	name, err := r.client.Type(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("error fetching type of %q: %v", key, err)
	}
	return kindOfTypeName(name)
}

// TTL returns the remaining time to live of a key. Zero means persistent.
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("error fetching TTL of %q: %v", key, err)
	}

	switch ttl {
	case ttlMissing:
		return 0, ErrKeyNotFound
	case ttlPersistent:
		return 0, nil
	default:
		return ttl, nil
	}
}

// MemoryUsage returns the approximate memory footprint of a key in bytes.
func (r *Redis) MemoryUsage(ctx context.Context, key string) (int64, error) {
	bytes, err := r.client.MemoryUsage(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrKeyNotFound
		}
		return 0, fmt.Errorf("error fetching memory usage of %q: %v", key, err)
	}
	return bytes, nil
}

// ReadEntry snapshots a key into a typed entry.
func (r *Redis) ReadEntry(ctx context.Context, key string) (Entry, error) {
	kind, err := r.TypeOf(ctx, key)
	if err != nil {
		return nil, err
	}

	ttl, err := r.TTL(ctx, key)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindString:
		value, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrKeyNotFound
			}
			return nil, fmt.Errorf("error reading string %q: %v", key, err)
		}
		return NewStringEntry(key, value, ttl), nil

	case KindHash:
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("error reading hash %q: %v", key, err)
		}
		return NewHashEntry(key, fields, ttl), nil

	case KindList:
		values, err := r.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("error reading list %q: %v", key, err)
		}
		return NewListEntry(key, values, ttl), nil

	case KindSet:
		members, err := r.client.SMembers(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("error reading set %q: %v", key, err)
		}
		return NewSetEntry(key, members, ttl), nil

	case KindSortedSet:
		zs, err := r.client.ZRangeWithScores(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("error reading sorted set %q: %v", key, err)
		}
		members := make([]ScoredMember, len(zs))
		for i, z := range zs {
			members[i] = ScoredMember{Member: fmt.Sprintf("%v", z.Member), Score: z.Score}
		}
		return NewSortedSetEntry(key, members, ttl), nil

	default:
		return nil, fmt.Errorf("unsupported key type %q for %q", kind, key)
	}
}

// WriteEntry writes a typed entry. Collection types replace any
// pre-existing key so repeated writes converge to the same state.
func (r *Redis) WriteEntry(ctx context.Context, entry Entry, preserveTTL bool) error {
	key := entry.Key()

	ttl := time.Duration(0)
	if preserveTTL {
		ttl = entry.TTL()
	}

	switch e := entry.(type) {
	case StringEntry:
		// SET with zero expiration clears any previous TTL
		if err := r.client.Set(ctx, key, e.Value, ttl).Err(); err != nil {
			return fmt.Errorf("error writing string %q: %v", key, err)
		}
		return nil

	case HashEntry:
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("error clearing hash %q: %v", key, err)
		}
		if len(e.Fields) > 0 {
			values := make(map[string]interface{}, len(e.Fields))
			for k, v := range e.Fields {
				values[k] = v
			}
			if err := r.client.HSet(ctx, key, values).Err(); err != nil {
				return fmt.Errorf("error writing hash %q: %v", key, err)
			}
		}
		return r.applyTTL(ctx, key, ttl)

	case ListEntry:
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("error clearing list %q: %v", key, err)
		}
		if len(e.Values) > 0 {
			// RPush appends, so pushing the LRange snapshot in order
			// reproduces the original ordering.
			values := make([]interface{}, len(e.Values))
			for i, v := range e.Values {
				values[i] = v
			}
			if err := r.client.RPush(ctx, key, values...).Err(); err != nil {
				return fmt.Errorf("error writing list %q: %v", key, err)
			}
		}
		return r.applyTTL(ctx, key, ttl)

	case SetEntry:
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("error clearing set %q: %v", key, err)
		}
		if len(e.Members) > 0 {
			members := make([]interface{}, len(e.Members))
			for i, m := range e.Members {
				members[i] = m
			}
			if err := r.client.SAdd(ctx, key, members...).Err(); err != nil {
				return fmt.Errorf("error writing set %q: %v", key, err)
			}
		}
		return r.applyTTL(ctx, key, ttl)

	case SortedSetEntry:
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("error clearing sorted set %q: %v", key, err)
		}
		if len(e.Members) > 0 {
			zs := make([]redis.Z, len(e.Members))
			for i, m := range e.Members {
				zs[i] = redis.Z{Member: m.Member, Score: m.Score}
			}
			if err := r.client.ZAdd(ctx, key, zs...).Err(); err != nil {
				return fmt.Errorf("error writing sorted set %q: %v", key, err)
			}
		}
		return r.applyTTL(ctx, key, ttl)

	default:
		return fmt.Errorf("unsupported entry type %T for %q", entry, key)
	}
}

func (r *Redis) applyTTL(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("error setting TTL on %q: %v", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("error deleting keys: %v", err)
	}
	return nil
}

// Set writes a plain string value, used by the performance comparator.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get reads a plain string value, used by the performance comparator.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	return value, nil
}

// ServerInfo reports server version, mode and keyspace size.
func (r *Redis) ServerInfo(ctx context.Context) (ServerInfo, error) {
	raw, err := r.client.Info(ctx).Result()
	if err != nil {
		return ServerInfo{}, fmt.Errorf("error fetching server info: %v", err)
	}

	infoMap := parseInfo(raw)
	info := ServerInfo{
		Version: infoMap["redis_version"],
		Mode:    infoMap["redis_mode"],
	}

	if keyCount, err := r.client.DBSize(ctx).Result(); err == nil {
		info.KeyCount = keyCount
	}

	if usedMemory, ok := infoMap["used_memory"]; ok {
		if memoryBytes, err := strconv.ParseInt(usedMemory, 10, 64); err == nil {
			info.UsedMemoryBytes = memoryBytes
		}
	}

	return info, nil
}

// parseInfo parses INFO command output into a map
func parseInfo(info string) map[string]string {
	result := make(map[string]string)
	lines := strings.Split(info, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}

	return result
}
