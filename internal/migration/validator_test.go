package migration

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cacheshift/cacheshift/internal/store"
)

func newTestValidator(source, target *fakeStore, cfg *Config) *Validator {
	return NewValidator(source, target, cfg, rand.New(rand.NewSource(1)), testLogger())
}

func TestValidateIdenticalStores(t *testing.T) {
	source := newFakeStore()
	source.seed(
		store.NewStringEntry("user:1", "alice", 0),
		store.NewHashEntry("session:1", map[string]string{"ip": "10.0.0.1"}, time.Hour),
		store.NewListEntry("queue", []string{"a", "b"}, 0),
		store.NewSetEntry("tags", []string{"x", "y"}, 0),
		store.NewSortedSetEntry("board", []store.ScoredMember{{Member: "p1", Score: 1.5}}, 0),
	)
	target := newFakeStore()
	target.seed(
		store.NewStringEntry("user:1", "alice", 0),
		store.NewHashEntry("session:1", map[string]string{"ip": "10.0.0.1"}, time.Hour),
		store.NewListEntry("queue", []string{"a", "b"}, 0),
		// Unordered types compare as sets, member order is irrelevant
		store.NewSetEntry("tags", []string{"y", "x"}, 0),
		store.NewSortedSetEntry("board", []store.ScoredMember{{Member: "p1", Score: 1.5}}, 0),
	)

	report, err := newTestValidator(source, target, migrationConfig()).Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.KeysChecked)
	assert.Equal(t, 5, report.MatchingKeys)
	assert.Equal(t, 100.0, report.ConsistencyScore)
	assert.Empty(t, report.Mismatches)
}

func TestValidateEmptyKeyspaceScoresPerfect(t *testing.T) {
	report, err := newTestValidator(newFakeStore(), newFakeStore(), migrationConfig()).
		Validate(context.Background())
	require.NoError(t, err)

	assert.Zero(t, report.KeysChecked)
	assert.Equal(t, 100.0, report.ConsistencyScore)
}

func TestValidateClassifiesMismatches(t *testing.T) {
	source := newFakeStore()
	source.seed(
		store.NewStringEntry("match", "same", 0),
		store.NewStringEntry("missing", "v", 0),
		store.NewStringEntry("wrong-type", "v", 0),
		store.NewStringEntry("wrong-value", "left", 0),
		store.NewStringEntry("wrong-ttl", "v", time.Hour),
	)
	target := newFakeStore()
	target.seed(
		store.NewStringEntry("match", "same", 0),
		store.NewListEntry("wrong-type", []string{"v"}, 0),
		store.NewStringEntry("wrong-value", "right", 0),
		store.NewStringEntry("wrong-ttl", "v", time.Minute),
	)

	report, err := newTestValidator(source, target, migrationConfig()).Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.KeysChecked)
	assert.Equal(t, 1, report.MatchingKeys)
	assert.Equal(t, 1, report.MissingKeys)
	assert.Equal(t, 1, report.TypeMismatches)
	assert.Equal(t, 1, report.ValueMismatches)
	assert.Equal(t, 1, report.TTLMismatches)
	assert.InDelta(t, 20.0, report.ConsistencyScore, 0.01)
	assert.Len(t, report.Mismatches, 4)

	byKey := make(map[string]Mismatch)
	for _, m := range report.Mismatches {
		byKey[m.Key] = m
	}
	assert.Equal(t, IssueMissing, byKey["missing"].Issue)
	assert.Equal(t, IssueTypeMismatch, byKey["wrong-type"].Issue)
	assert.Equal(t, IssueValueMismatch, byKey["wrong-value"].Issue)
	assert.Equal(t, IssueTTLMismatch, byKey["wrong-ttl"].Issue)
}

func TestValidateTTLWithinTolerance(t *testing.T) {
	source := newFakeStore()
	source.seed(store.NewStringEntry("k", "v", time.Hour))
	target := newFakeStore()
	target.seed(store.NewStringEntry("k", "v", time.Hour-3*time.Second))

	report, err := newTestValidator(source, target, migrationConfig()).Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.MatchingKeys)
	assert.Zero(t, report.TTLMismatches)
}

func TestValidateIgnoresTTLWhenNotPreserved(t *testing.T) {
	source := newFakeStore()
	source.seed(store.NewStringEntry("k", "v", time.Hour))
	target := newFakeStore()
	target.seed(store.NewStringEntry("k", "v", 0))

	cfg := migrationConfig()
	cfg.PreserveTTL = false

	report, err := newTestValidator(source, target, cfg).Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.MatchingKeys)
	assert.Zero(t, report.TTLMismatches)
}

func TestValidateSkipsSourceKeysGoneSinceEnumeration(t *testing.T) {
	source := newFakeStore()
	source.seed(store.NewStringEntry("k", "v", 0))
	target := newFakeStore()
	target.seed(store.NewStringEntry("k", "v", 0))

	// The read fails with not-found after enumeration saw the key
	source.failReads["k"] = store.ErrKeyNotFound

	report, err := newTestValidator(source, target, migrationConfig()).Validate(context.Background())
	require.NoError(t, err)

	// The key is never held against the target
	assert.Zero(t, report.KeysChecked)
	assert.Zero(t, report.MissingKeys)
	assert.Equal(t, 100.0, report.ConsistencyScore)
}

func TestValidateReadErrorIsAMismatchNotAFailure(t *testing.T) {
	source := newFakeStore()
	source.seed(
		store.NewStringEntry("good", "v", 0),
		store.NewStringEntry("bad", "v", 0),
	)
	target := newFakeStore()
	target.seed(
		store.NewStringEntry("good", "v", 0),
		store.NewStringEntry("bad", "v", 0),
	)
	source.failReads["bad"] = fmt.Errorf("connection reset")

	report, err := newTestValidator(source, target, migrationConfig()).Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.MatchingKeys)
	assert.Equal(t, 1, report.ValidationErrors)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, IssueValidationError, report.Mismatches[0].Issue)
}

func TestValidateCapsMismatchSamples(t *testing.T) {
	source := newFakeStore()
	for i := 0; i < 30; i++ {
		source.seed(store.NewStringEntry(fmt.Sprintf("k%02d", i), "v", 0))
	}
	target := newFakeStore() // everything missing

	report, err := newTestValidator(source, target, migrationConfig()).Validate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, report.MissingKeys)
	assert.Len(t, report.Mismatches, mismatchSampleLimit)
	assert.Zero(t, report.ConsistencyScore)
}

func TestEntriesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b store.Entry
		want bool
	}{
		{"equal strings", store.NewStringEntry("k", "v", 0), store.NewStringEntry("k", "v", time.Hour), true},
		{"different strings", store.NewStringEntry("k", "a", 0), store.NewStringEntry("k", "b", 0), false},
		{"cross type", store.NewStringEntry("k", "v", 0), store.NewListEntry("k", []string{"v"}, 0), false},
		{
			"list order matters",
			store.NewListEntry("k", []string{"a", "b"}, 0),
			store.NewListEntry("k", []string{"b", "a"}, 0),
			false,
		},
		{
			"set order does not",
			store.NewSetEntry("k", []string{"a", "b"}, 0),
			store.NewSetEntry("k", []string{"b", "a"}, 0),
			true,
		},
		{
			"hash field diff",
			store.NewHashEntry("k", map[string]string{"f": "1"}, 0),
			store.NewHashEntry("k", map[string]string{"f": "2"}, 0),
			false,
		},
		{
			"zset score diff",
			store.NewSortedSetEntry("k", []store.ScoredMember{{Member: "m", Score: 1}}, 0),
			store.NewSortedSetEntry("k", []store.ScoredMember{{Member: "m", Score: 2}}, 0),
			false,
		},
		{
			"zset within epsilon",
			store.NewSortedSetEntry("k", []store.ScoredMember{{Member: "m", Score: 1}}, 0),
			store.NewSortedSetEntry("k", []store.ScoredMember{{Member: "m", Score: 1 + 1e-12}}, 0),
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entriesEqual(tt.a, tt.b))
		})
	}
}
