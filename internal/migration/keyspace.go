package migration

import (
	"context"
	"fmt"
	"sort"

	"github.com/cacheshift/cacheshift/internal/store"
)

// effectiveKeyspace enumerates the keys a run operates on: the union of
// all include-pattern matches minus the union of all exclude-pattern
// matches. The result is sorted so batch partitioning is deterministic.
func effectiveKeyspace(ctx context.Context, src store.Store, cfg *Config) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string

	for _, pattern := range cfg.IncludePatterns {
		matches, err := src.Keys(ctx, pattern)
		if err != nil {
			return nil, fmt.Errorf("error enumerating pattern %q: %v", pattern, err)
		}
		for _, key := range matches {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	if len(cfg.ExcludePatterns) > 0 {
		filtered := keys[:0]
		for _, key := range keys {
			if !matchesAny(cfg.ExcludePatterns, key) {
				filtered = append(filtered, key)
			}
		}
		keys = filtered
	}

	sort.Strings(keys)
	return keys, nil
}

func matchesAny(patterns []string, key string) bool {
	for _, pattern := range patterns {
		if globMatch(pattern, key) {
			return true
		}
	}
	return false
}

// globMatch implements store-style glob matching (*, ?, [set]) where a
// wildcard matches any character including separators, which is why
// path.Match cannot be used here.
func globMatch(pattern, key string) bool {
	return globMatchAt(pattern, key, 0, 0)
}

func globMatchAt(pattern, key string, p, k int) bool {
	for p < len(pattern) {
		switch pattern[p] {
		case '*':
			// Collapse consecutive stars, then try every suffix
			for p < len(pattern) && pattern[p] == '*' {
				p++
			}
			if p == len(pattern) {
				return true
			}
			for i := k; i <= len(key); i++ {
				if globMatchAt(pattern, key, p, i) {
					return true
				}
			}
			return false
		case '?':
			if k >= len(key) {
				return false
			}
			p++
			k++
		case '[':
			if k >= len(key) {
				return false
			}
			end := p + 1
			for end < len(pattern) && pattern[end] != ']' {
				end++
			}
			if end >= len(pattern) {
				// Unterminated set, treat bracket literally
				if pattern[p] != key[k] {
					return false
				}
				p++
				k++
				continue
			}
			if !setMatch(pattern[p+1:end], key[k]) {
				return false
			}
			p = end + 1
			k++
		case '\\':
			if p+1 < len(pattern) {
				p++
			}
			if k >= len(key) || pattern[p] != key[k] {
				return false
			}
			p++
			k++
		default:
			if k >= len(key) || pattern[p] != key[k] {
				return false
			}
			p++
			k++
		}
	}
	return k == len(key)
}

func setMatch(set string, c byte) bool {
	negate := false
	if len(set) > 0 && (set[0] == '^' || set[0] == '!') {
		negate = true
		set = set[1:]
	}

	matched := false
	for i := 0; i < len(set); i++ {
		if i+2 < len(set) && set[i+1] == '-' {
			if set[i] <= c && c <= set[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if set[i] == c {
			matched = true
		}
	}

	if negate {
		return !matched
	}
	return matched
}
