package migration

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cacheshift/cacheshift/internal/metrics"
	"github.com/cacheshift/cacheshift/internal/store"
	"github.com/cacheshift/cacheshift/pkg/health"
	"github.com/cacheshift/cacheshift/pkg/logger"
)

// State is the coordinator's position in the run lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StatePlanning   State = "planning"
	StateMigrating  State = "migrating"
	StateValidating State = "validating"
	StateComparing  State = "comparing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// successThreshold is the migrated/total ratio a run must reach to be
// considered successful.
const successThreshold = 0.95

// MigrationResult is the terminal outcome of one migrate run. It is
// always produced, even for degraded runs, so callers can render a
// report regardless of outcome.
type MigrationResult struct {
	RunID   string
	Success bool

	TotalKeys    int
	MigratedKeys int
	FailedKeys   int
	Duration     time.Duration

	ConsistencyScore float64
	Validation       *ValidationReport
	Performance      *PerformanceReport

	Errors  []string
	Message string
}

// Coordinator orchestrates analysis, planning, transfer, validation and
// benchmarking over one source/target store pair.
type Coordinator struct {
	cfg     *Config
	log     *logger.Logger
	checker *health.Checker

	source store.Store
	target store.Store

	collector *metrics.Metrics
	rng       *rand.Rand
	runID     string

	mu         sync.Mutex
	state      State
	tracker    *StatusTracker
	lastResult *MigrationResult
}

// Option customizes coordinator construction.
type Option func(*Coordinator)

// WithStores injects already connected stores instead of dialing the
// configured endpoints.
func WithStores(source, target store.Store) Option {
	return func(c *Coordinator) {
		c.source = source
		c.target = target
	}
}

// WithRunID overrides the generated run ID so external collectors (for
// example a metrics registry labeled ahead of construction) can share it.
func WithRunID(id string) Option {
	return func(c *Coordinator) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithRand injects the random source used for validation sampling.
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) { c.rng = rng }
}

// WithMetrics attaches a metrics collector fed by the status tracker.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.collector = m }
}

// NewCoordinator validates the config, connects both stores and verifies
// them with a ping. A connection failure here is fatal: the state
// machine is never entered.
func NewCoordinator(cfg *Config, log *logger.Logger, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Coordinator{
		cfg:     cfg,
		log:     log,
		checker: health.NewChecker(),
		runID:   uuid.NewString(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.source == nil || c.target == nil {
		sourceEndpoint, err := store.ParseEndpoint(cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("invalid source endpoint: %w", err)
		}
		targetEndpoint, err := store.ParseEndpoint(cfg.Target)
		if err != nil {
			return nil, fmt.Errorf("invalid target endpoint: %w", err)
		}

		source, err := store.Connect(sourceEndpoint)
		if err != nil {
			return nil, fmt.Errorf("source store: %w", err)
		}
		target, err := store.Connect(targetEndpoint)
		if err != nil {
			source.Close()
			return nil, fmt.Errorf("target store: %w", err)
		}
		c.source = source
		c.target = target
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.checker.RunCheck("source-ping", func() error { return c.source.Ping(ctx) }); err != nil {
		c.Close()
		return nil, fmt.Errorf("source store unhealthy: %w", err)
	}
	if err := c.checker.RunCheck("target-ping", func() error { return c.target.Ping(ctx) }); err != nil {
		c.Close()
		return nil, fmt.Errorf("target store unhealthy: %w", err)
	}

	return c, nil
}

// RunID returns the unique identifier of this coordinator's run.
func (c *Coordinator) RunID() string { return c.runID }

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Health returns the connection health checker.
func (c *Coordinator) Health() *health.Checker { return c.checker }

// Status returns a snapshot of transfer progress. Before the transfer
// starts it returns the zero status.
func (c *Coordinator) Status() MigrationStatus {
	c.mu.Lock()
	tracker := c.tracker
	c.mu.Unlock()

	if tracker == nil {
		return MigrationStatus{}
	}
	return tracker.Snapshot()
}

// Close releases both store connections.
func (c *Coordinator) Close() {
	if c.source != nil {
		c.source.Close()
	}
	if c.target != nil {
		c.target.Close()
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Plan analyzes the source keyspace and derives a staged execution plan.
// It never mutates either store.
func (c *Coordinator) Plan(ctx context.Context) (*MigrationPlan, *ScopeProfile, error) {
	c.setState(StateAnalyzing)
	profile, err := NewScopeAnalyzer(c.source, c.log).Analyze(ctx, c.cfg)
	if err != nil {
		c.setState(StateFailed)
		return nil, nil, err
	}

	c.setState(StatePlanning)
	plan := NewPlanner().Plan(profile)
	c.setState(StateIdle)

	return plan, profile, nil
}

// Migrate runs the full pipeline: analyze, transfer, validate, compare.
// It always returns a result; partial failure is reported through the
// success flag and error list, never raised.
func (c *Coordinator) Migrate(ctx context.Context) *MigrationResult {
	start := time.Now()
	result := &MigrationResult{RunID: c.runID}
	defer func() {
		result.Duration = time.Since(start)
		c.mu.Lock()
		c.lastResult = result
		c.mu.Unlock()
	}()

	c.setState(StateAnalyzing)
	keys, err := effectiveKeyspace(ctx, c.source, c.cfg)
	if err != nil {
		c.setState(StateFailed)
		result.Errors = append(result.Errors, err.Error())
		result.Message = fmt.Sprintf("keyspace enumeration failed: %v", err)
		return result
	}
	result.TotalKeys = len(keys)

	profile, err := NewScopeAnalyzer(c.source, c.log).AnalyzeKeys(ctx, keys)
	if err == nil {
		c.log.Infof("migrating %d keys (complexity %.1f)", profile.TotalKeys, profile.ComplexityScore)
	}

	if result.TotalKeys == 0 {
		result.Success = true
		result.Message = "effective keyspace is empty, nothing to migrate"
		c.setState(StateCompleted)
		return result
	}

	c.setState(StateMigrating)
	totalBatches := (len(keys) + c.cfg.BatchSize - 1) / c.cfg.BatchSize
	tracker := NewStatusTracker(len(keys), totalBatches, c.collector)
	c.mu.Lock()
	c.tracker = tracker
	c.mu.Unlock()

	migrator := NewBatchMigrator(c.source, c.target, c.cfg, tracker, c.log)
	migrated, failed, errs := migrator.Migrate(ctx, keys)
	tracker.Close()

	result.MigratedKeys = migrated
	result.FailedKeys = failed
	result.Errors = append(result.Errors, errs...)

	ratio := float64(migrated) / float64(result.TotalKeys)
	if ratio < successThreshold {
		// A failed transfer goes straight to Failed with partial counts
		// preserved; validation against a known-incomplete target would
		// only restate the damage.
		c.setState(StateFailed)
		result.Message = fmt.Sprintf(
			"migration failed: %d of %d keys transferred (%.1f%%, need %.0f%%)",
			migrated, result.TotalKeys, ratio*100, successThreshold*100)
		return result
	}

	if c.cfg.VerifyIntegrity {
		c.setState(StateValidating)
		report, err := NewValidator(c.source, c.target, c.cfg, c.rng, c.log).Validate(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("validation: %v", err))
		} else {
			result.Validation = report
			result.ConsistencyScore = report.ConsistencyScore
		}
	}

	c.setState(StateComparing)
	result.Performance = NewComparator(c.source, c.target, c.log).Compare(ctx)

	result.Success = true
	c.setState(StateCompleted)
	result.Message = fmt.Sprintf("migrated %d of %d keys (%.1f%%)",
		migrated, result.TotalKeys, ratio*100)
	if result.Validation != nil {
		result.Message += fmt.Sprintf(", consistency %.2f%%", result.ConsistencyScore)
	}

	return result
}

// Validate runs a standalone read-only consistency check.
func (c *Coordinator) Validate(ctx context.Context) (*ValidationReport, error) {
	c.setState(StateValidating)
	report, err := NewValidator(c.source, c.target, c.cfg, c.rng, c.log).Validate(ctx)
	if err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	c.setState(StateIdle)
	return report, nil
}

// Benchmark runs a standalone performance comparison.
func (c *Coordinator) Benchmark(ctx context.Context) *PerformanceReport {
	c.setState(StateComparing)
	report := NewComparator(c.source, c.target, c.log).Compare(ctx)
	c.setState(StateIdle)
	return report
}

// CutoverReady reports whether the last migrate run succeeded. A
// successful result is the precondition for pointing the consuming
// application at the target store.
func (c *Coordinator) CutoverReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult != nil && c.lastResult.Success
}

// TargetEndpoint returns the endpoint the application should use after
// cutover.
func (c *Coordinator) TargetEndpoint() string { return c.cfg.Target }
