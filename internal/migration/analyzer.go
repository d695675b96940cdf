package migration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cacheshift/cacheshift/internal/store"
	"github.com/cacheshift/cacheshift/pkg/logger"
)

// sampleLimit bounds how many keys the analyzer and validator inspect
// individually. Everything beyond it is extrapolated.
const sampleLimit = 1000

// assumedThroughput is the planning assumption for transfer speed,
// in keys per second.
const assumedThroughput = 100

// ScopeProfile describes the shape of the keyspace a run will migrate.
type ScopeProfile struct {
	TotalKeys   int
	SampledKeys int

	// TypeCounts is extrapolated from the sample to the full keyspace.
	TypeCounts map[store.Kind]int
	// EstimatedMemoryBytes is the average sampled key footprint
	// multiplied by the total key count.
	EstimatedMemoryBytes int64
	// TTLBuckets histograms remaining TTLs into hour ("2h") and minute
	// ("15m") buckets, with "persistent" for keys without expiration.
	// Extrapolated from the sample like TypeCounts.
	TTLBuckets map[string]int

	// ComplexityScore is a weighted sum of type diversity, key prefix
	// diversity, scale and TTL diversity.
	ComplexityScore float64
	// EstimatedTransferTime assumes a fixed bulk throughput.
	EstimatedTransferTime time.Duration
}

// ScopeAnalyzer inspects the source keyspace before a migration.
type ScopeAnalyzer struct {
	source store.Store
	log    *logger.Logger
}

// NewScopeAnalyzer creates an analyzer over the source store.
func NewScopeAnalyzer(source store.Store, log *logger.Logger) *ScopeAnalyzer {
	return &ScopeAnalyzer{source: source, log: log}
}

// Analyze enumerates the effective keyspace and profiles it.
func (a *ScopeAnalyzer) Analyze(ctx context.Context, cfg *Config) (*ScopeProfile, error) {
	keys, err := effectiveKeyspace(ctx, a.source, cfg)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeKeys(ctx, keys)
}

// AnalyzeKeys profiles an already enumerated keyspace. Per-key failures
// during sampling are skipped, not propagated.
func (a *ScopeAnalyzer) AnalyzeKeys(ctx context.Context, keys []string) (*ScopeProfile, error) {
	profile := &ScopeProfile{
		TotalKeys:  len(keys),
		TypeCounts: make(map[store.Kind]int),
		TTLBuckets: make(map[string]int),
	}

	if profile.TotalKeys == 0 {
		return profile, nil
	}

	sample := sampleStride(keys, sampleLimit)
	profile.SampledKeys = len(sample)

	sampleTypes := make(map[store.Kind]int)
	sampleBuckets := make(map[string]int)
	prefixes := make(map[string]struct{})
	var sampledMemory int64
	var measuredKeys int64

	for _, key := range sample {
		kind, err := a.source.TypeOf(ctx, key)
		if err != nil {
			a.log.Debugf("skipping %q during analysis: %v", key, err)
			continue
		}
		sampleTypes[kind]++
		prefixes[keyPrefix(key)] = struct{}{}

		if bytes, err := a.source.MemoryUsage(ctx, key); err == nil {
			sampledMemory += bytes
			measuredKeys++
		}

		ttl, err := a.source.TTL(ctx, key)
		if err != nil {
			continue
		}
		sampleBuckets[ttlBucket(ttl)]++
	}

	// Extrapolate sample counts to the full keyspace so type and TTL
	// figures are on the same scale as TotalKeys
	scale := float64(profile.TotalKeys) / float64(profile.SampledKeys)
	for kind, count := range sampleTypes {
		profile.TypeCounts[kind] = int(float64(count)*scale + 0.5)
	}
	for bucket, count := range sampleBuckets {
		profile.TTLBuckets[bucket] = int(float64(count)*scale + 0.5)
	}
	if measuredKeys > 0 {
		avg := sampledMemory / measuredKeys
		profile.EstimatedMemoryBytes = avg * int64(profile.TotalKeys)
	}

	profile.ComplexityScore = 10*float64(len(sampleTypes)) +
		5*float64(len(prefixes)) +
		float64(profile.TotalKeys)/1000 +
		5*float64(len(profile.TTLBuckets))

	profile.EstimatedTransferTime = time.Duration(float64(profile.TotalKeys)/assumedThroughput) * time.Second

	a.log.WithFields(map[string]string{
		"total_keys": fmt.Sprintf("%d", profile.TotalKeys),
		"sampled":    fmt.Sprintf("%d", profile.SampledKeys),
		"complexity": fmt.Sprintf("%.1f", profile.ComplexityScore),
	}).Info("keyspace analysis complete")

	return profile, nil
}

// sampleStride picks an evenly spaced sample of at most limit keys.
func sampleStride(keys []string, limit int) []string {
	if len(keys) <= limit {
		return keys
	}

	sample := make([]string, 0, limit)
	step := float64(len(keys)) / float64(limit)
	for i := 0; i < limit; i++ {
		sample = append(sample, keys[int(float64(i)*step)])
	}
	return sample
}

// keyPrefix returns the first colon-delimited segment of a key, the
// conventional namespace marker in cache keyspaces.
func keyPrefix(key string) string {
	if idx := strings.Index(key, ":"); idx > 0 {
		return key[:idx]
	}
	return key
}

// ttlBucket buckets a remaining TTL. Zero means no expiration.
func ttlBucket(ttl time.Duration) string {
	switch {
	case ttl <= 0:
		return "persistent"
	case ttl >= time.Hour:
		return fmt.Sprintf("%dh", int(ttl.Hours()))
	default:
		return fmt.Sprintf("%dm", int(ttl.Minutes()))
	}
}
