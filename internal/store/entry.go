package store

import (
	"time"
)

// Kind identifies the native type of a cache key.
type Kind string

const (
	KindString    Kind = "string"
	KindHash      Kind = "hash"
	KindList      Kind = "list"
	KindSet       Kind = "set"
	KindSortedSet Kind = "zset"
)

// Kinds lists every key type the migrator can transfer.
func Kinds() []Kind {
	return []Kind{KindString, KindHash, KindList, KindSet, KindSortedSet}
}

// ScoredMember is a single member of a sorted set.
type ScoredMember struct {
	Member string
	Score  float64
}

// Entry is a typed snapshot of one key: its name, remaining TTL and value.
// The set of implementations is closed so transfer and comparison logic can
// switch over them exhaustively.
type Entry interface {
	Key() string
	// TTL returns the remaining time to live. Zero means the key is
	// persistent (no expiration).
	TTL() time.Duration
	Kind() Kind

	entry()
}

type entryBase struct {
	key string
	ttl time.Duration
}

func (e entryBase) Key() string        { return e.key }
func (e entryBase) TTL() time.Duration { return e.ttl }
func (e entryBase) entry()             {}

// StringEntry is a plain string value.
type StringEntry struct {
	entryBase
	Value string
}

// NewStringEntry builds a string entry. A zero ttl means persistent.
func NewStringEntry(key, value string, ttl time.Duration) StringEntry {
	return StringEntry{entryBase: entryBase{key: key, ttl: ttl}, Value: value}
}

func (StringEntry) Kind() Kind { return KindString }

// HashEntry is a field/value map.
type HashEntry struct {
	entryBase
	Fields map[string]string
}

// NewHashEntry builds a hash entry. A zero ttl means persistent.
func NewHashEntry(key string, fields map[string]string, ttl time.Duration) HashEntry {
	return HashEntry{entryBase: entryBase{key: key, ttl: ttl}, Fields: fields}
}

func (HashEntry) Kind() Kind { return KindHash }

// ListEntry is an ordered sequence of elements.
type ListEntry struct {
	entryBase
	Values []string
}

// NewListEntry builds a list entry preserving element order. A zero ttl
// means persistent.
func NewListEntry(key string, values []string, ttl time.Duration) ListEntry {
	return ListEntry{entryBase: entryBase{key: key, ttl: ttl}, Values: values}
}

func (ListEntry) Kind() Kind { return KindList }

// SetEntry is an unordered collection of unique members.
type SetEntry struct {
	entryBase
	Members []string
}

// NewSetEntry builds a set entry. A zero ttl means persistent.
func NewSetEntry(key string, members []string, ttl time.Duration) SetEntry {
	return SetEntry{entryBase: entryBase{key: key, ttl: ttl}, Members: members}
}

func (SetEntry) Kind() Kind { return KindSet }

// SortedSetEntry is a collection of members ordered by score.
type SortedSetEntry struct {
	entryBase
	Members []ScoredMember
}

// NewSortedSetEntry builds a sorted set entry. A zero ttl means persistent.
func NewSortedSetEntry(key string, members []ScoredMember, ttl time.Duration) SortedSetEntry {
	return SortedSetEntry{entryBase: entryBase{key: key, ttl: ttl}, Members: members}
}

func (SortedSetEntry) Kind() Kind { return KindSortedSet }
