package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryKinds(t *testing.T) {
	tests := []struct {
		entry Entry
		kind  Kind
	}{
		{NewStringEntry("k", "v", 0), KindString},
		{NewHashEntry("k", map[string]string{"f": "v"}, 0), KindHash},
		{NewListEntry("k", []string{"v"}, 0), KindList},
		{NewSetEntry("k", []string{"v"}, 0), KindSet},
		{NewSortedSetEntry("k", []ScoredMember{{Member: "v", Score: 1}}, 0), KindSortedSet},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.entry.Kind())
		assert.Equal(t, "k", tt.entry.Key())
		assert.Equal(t, time.Duration(0), tt.entry.TTL())
	}

	assert.Len(t, Kinds(), len(tests))
}

func TestEntryTTL(t *testing.T) {
	entry := NewStringEntry("session:1", "v", 30*time.Minute)
	assert.Equal(t, 30*time.Minute, entry.TTL())
}

func TestKindOfTypeName(t *testing.T) {
	for _, kind := range Kinds() {
		got, err := kindOfTypeName(string(kind))
		assert.NoError(t, err)
		assert.Equal(t, kind, got)
	}

	_, err := kindOfTypeName("none")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = kindOfTypeName("stream")
	assert.Error(t, err)
}
