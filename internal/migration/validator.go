package migration

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cacheshift/cacheshift/internal/store"
	"github.com/cacheshift/cacheshift/pkg/logger"
)

// ttlTolerance is the allowed TTL drift between source and target; keys
// keep expiring while the migration runs.
const ttlTolerance = 5 * time.Second

// mismatchSampleLimit caps how many mismatch descriptors a report keeps.
const mismatchSampleLimit = 10

// Mismatch issue classes.
const (
	IssueMissing         = "missing"
	IssueTypeMismatch    = "type_mismatch"
	IssueValueMismatch   = "value_mismatch"
	IssueTTLMismatch     = "ttl_mismatch"
	IssueValidationError = "validation_error"
)

// Mismatch describes one sampled key that failed comparison.
type Mismatch struct {
	Key    string
	Issue  string
	Detail string
}

// ValidationReport summarizes a statistical source/target comparison.
type ValidationReport struct {
	KeysChecked      int
	MatchingKeys     int
	MissingKeys      int
	TypeMismatches   int
	ValueMismatches  int
	TTLMismatches    int
	ValidationErrors int

	// ConsistencyScore is the percentage of checked keys found equal;
	// 100 when nothing was checked.
	ConsistencyScore float64

	// Mismatches holds at most mismatchSampleLimit descriptors for
	// operator inspection.
	Mismatches []Mismatch
}

// Validator samples the migrated keyspace and compares source against
// target per key. The random source is injected so tests can fix the
// sample.
type Validator struct {
	source store.Store
	target store.Store
	cfg    *Config
	rng    *rand.Rand
	log    *logger.Logger
}

// NewValidator creates a validator. A nil rng falls back to a
// time-seeded source.
func NewValidator(source, target store.Store, cfg *Config, rng *rand.Rand, log *logger.Logger) *Validator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Validator{source: source, target: target, cfg: cfg, rng: rng, log: log}
}

// Validate re-enumerates the effective keyspace, draws a uniform random
// sample of at most 1000 keys, and compares each sampled key. This is a
// statistical check, not a guarantee.
func (v *Validator) Validate(ctx context.Context) (*ValidationReport, error) {
	keys, err := effectiveKeyspace(ctx, v.source, v.cfg)
	if err != nil {
		return nil, err
	}

	sample := keys
	if len(keys) > sampleLimit {
		perm := v.rng.Perm(len(keys))
		sample = make([]string, sampleLimit)
		for i := 0; i < sampleLimit; i++ {
			sample[i] = keys[perm[i]]
		}
	}

	report := &ValidationReport{}

	for _, key := range sample {
		mismatch, checked := v.compareKey(ctx, key)
		if !checked {
			// Key expired at the source between enumeration and
			// comparison; nothing to hold the target to.
			continue
		}
		report.KeysChecked++

		if mismatch == nil {
			report.MatchingKeys++
			continue
		}

		switch mismatch.Issue {
		case IssueMissing:
			report.MissingKeys++
		case IssueTypeMismatch:
			report.TypeMismatches++
		case IssueValueMismatch:
			report.ValueMismatches++
		case IssueTTLMismatch:
			report.TTLMismatches++
		default:
			report.ValidationErrors++
		}

		if len(report.Mismatches) < mismatchSampleLimit {
			report.Mismatches = append(report.Mismatches, *mismatch)
		}
	}

	issues := report.MissingKeys + report.TypeMismatches + report.ValueMismatches +
		report.TTLMismatches + report.ValidationErrors
	if report.KeysChecked == 0 {
		report.ConsistencyScore = 100
	} else {
		report.ConsistencyScore = float64(report.KeysChecked-issues) / float64(report.KeysChecked) * 100
	}

	v.log.WithFields(map[string]string{
		"checked": fmt.Sprintf("%d", report.KeysChecked),
		"score":   fmt.Sprintf("%.2f", report.ConsistencyScore),
	}).Info("consistency validation complete")

	return report, nil
}

// compareKey compares one key. checked is false when the source key no
// longer exists; a comparison failure is reported as a validation_error
// mismatch rather than an error so one bad key never aborts the pass.
func (v *Validator) compareKey(ctx context.Context, key string) (mismatch *Mismatch, checked bool) {
	srcKind, err := v.source.TypeOf(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, false
		}
		return &Mismatch{Key: key, Issue: IssueValidationError, Detail: err.Error()}, true
	}

	tgtKind, err := v.target.TypeOf(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return &Mismatch{Key: key, Issue: IssueMissing, Detail: "key not found in target"}, true
		}
		return &Mismatch{Key: key, Issue: IssueValidationError, Detail: err.Error()}, true
	}

	if srcKind != tgtKind {
		return &Mismatch{
			Key:    key,
			Issue:  IssueTypeMismatch,
			Detail: fmt.Sprintf("source is %s, target is %s", srcKind, tgtKind),
		}, true
	}

	srcEntry, err := v.source.ReadEntry(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return nil, false
		}
		return &Mismatch{Key: key, Issue: IssueValidationError, Detail: err.Error()}, true
	}
	tgtEntry, err := v.target.ReadEntry(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return &Mismatch{Key: key, Issue: IssueMissing, Detail: "key not found in target"}, true
		}
		return &Mismatch{Key: key, Issue: IssueValidationError, Detail: err.Error()}, true
	}

	if !entriesEqual(srcEntry, tgtEntry) {
		return &Mismatch{
			Key:    key,
			Issue:  IssueValueMismatch,
			Detail: fmt.Sprintf("%s values differ", srcKind),
		}, true
	}

	if v.cfg.PreserveTTL {
		diff := srcEntry.TTL() - tgtEntry.TTL()
		if diff < 0 {
			diff = -diff
		}
		if diff > ttlTolerance {
			return &Mismatch{
				Key:   key,
				Issue: IssueTTLMismatch,
				Detail: fmt.Sprintf("source TTL %s, target TTL %s",
					srcEntry.TTL(), tgtEntry.TTL()),
			}, true
		}
	}

	return nil, true
}

// entriesEqual applies the type-specific equality rule: byte-exact for
// strings, order-preserving for lists, set-equality for hashes and sets,
// member+score equality for sorted sets.
func entriesEqual(a, b store.Entry) bool {
	switch src := a.(type) {
	case store.StringEntry:
		tgt, ok := b.(store.StringEntry)
		return ok && src.Value == tgt.Value

	case store.HashEntry:
		tgt, ok := b.(store.HashEntry)
		if !ok || len(src.Fields) != len(tgt.Fields) {
			return false
		}
		for field, value := range src.Fields {
			if tgt.Fields[field] != value {
				return false
			}
		}
		return true

	case store.ListEntry:
		tgt, ok := b.(store.ListEntry)
		if !ok || len(src.Values) != len(tgt.Values) {
			return false
		}
		for i, value := range src.Values {
			if tgt.Values[i] != value {
				return false
			}
		}
		return true

	case store.SetEntry:
		tgt, ok := b.(store.SetEntry)
		if !ok || len(src.Members) != len(tgt.Members) {
			return false
		}
		members := make(map[string]struct{}, len(tgt.Members))
		for _, m := range tgt.Members {
			members[m] = struct{}{}
		}
		for _, m := range src.Members {
			if _, found := members[m]; !found {
				return false
			}
		}
		return true

	case store.SortedSetEntry:
		tgt, ok := b.(store.SortedSetEntry)
		if !ok || len(src.Members) != len(tgt.Members) {
			return false
		}
		scores := make(map[string]float64, len(tgt.Members))
		for _, m := range tgt.Members {
			scores[m.Member] = m.Score
		}
		for _, m := range src.Members {
			score, found := scores[m.Member]
			if !found || math.Abs(score-m.Score) > 1e-9 {
				return false
			}
		}
		return true

	default:
		return false
	}
}
