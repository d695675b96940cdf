package migration

import (
	"fmt"
	"time"

	"github.com/cacheshift/cacheshift/internal/store"
)

// Strategy identifies the staged execution approach for a run.
type Strategy string

const (
	// StrategySimple transfers everything in one pass and cuts over.
	StrategySimple Strategy = "simple"
	// StrategyDualWrite has the application write to both stores while
	// the bulk transfer runs, shrinking the divergence window.
	StrategyDualWrite Strategy = "dual-write"
	// StrategyPhased adds an incremental sync pass between the bulk
	// transfer and the dual-write window for very large keyspaces.
	StrategyPhased Strategy = "phased"
)

// Strategy selection thresholds on total key count.
const (
	dualWriteThreshold = 10_000
	phasedThreshold    = 100_000
)

// Phase is one ordered step of a migration plan.
type Phase struct {
	Name              string
	Description       string
	EstimatedDuration time.Duration
	Parallelizable    bool
	RollbackPossible  bool
}

// MigrationPlan is the staged execution plan derived from a scope profile.
type MigrationPlan struct {
	Strategy          Strategy
	Phases            []Phase
	Risks             []string
	Recommendations   []string
	EstimatedDowntime time.Duration
	EstimatedDuration time.Duration
}

// Planner turns a scope profile into a staged execution plan.
type Planner struct{}

// NewPlanner creates a planner.
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan derives strategy, phases, risks and recommendations from the
// profile. It performs no I/O and never mutates either store.
func (p *Planner) Plan(profile *ScopeProfile) *MigrationPlan {
	plan := &MigrationPlan{
		Strategy: strategyFor(profile.TotalKeys),
	}

	transfer := profile.EstimatedTransferTime

	switch plan.Strategy {
	case StrategySimple:
		plan.EstimatedDowntime = 60 * time.Second
		plan.Phases = []Phase{
			transferPhase(transfer),
			validatePhase(transfer),
			cutoverPhase(plan.EstimatedDowntime),
		}
	case StrategyDualWrite:
		plan.EstimatedDowntime = 10 * time.Second
		plan.Phases = []Phase{
			{
				Name:              "enable-dual-write",
				Description:       "Configure the application to write to both stores",
				EstimatedDuration: 5 * time.Minute,
				RollbackPossible:  true,
			},
			transferPhase(transfer),
			validatePhase(transfer),
			cutoverPhase(plan.EstimatedDowntime),
		}
	case StrategyPhased:
		plan.EstimatedDowntime = 10 * time.Second
		// Bulk transfer covers ~80% of the estimated transfer time,
		// incremental sync the remaining ~20%.
		bulk := time.Duration(float64(transfer) * 0.8)
		incremental := time.Duration(float64(transfer) * 0.2)
		plan.Phases = []Phase{
			transferPhase(bulk),
			{
				Name:              "incremental-sync",
				Description:       "Re-copy keys written since the bulk transfer started",
				EstimatedDuration: incremental,
				Parallelizable:    true,
				RollbackPossible:  true,
			},
			{
				Name:              "dual-write",
				Description:       "Application writes to both stores until divergence is negligible",
				EstimatedDuration: 30 * time.Minute,
				RollbackPossible:  true,
			},
			cutoverPhase(plan.EstimatedDowntime),
		}
	}

	for _, phase := range plan.Phases {
		plan.EstimatedDuration += phase.EstimatedDuration
	}

	plan.Risks = risksFor(profile)
	plan.Recommendations = recommendationsFor(profile, plan.Strategy)

	return plan
}

func strategyFor(totalKeys int) Strategy {
	switch {
	case totalKeys < dualWriteThreshold:
		return StrategySimple
	case totalKeys < phasedThreshold:
		return StrategyDualWrite
	default:
		return StrategyPhased
	}
}

func transferPhase(duration time.Duration) Phase {
	return Phase{
		Name:              "bulk-transfer",
		Description:       "Copy every key in the effective keyspace to the target",
		EstimatedDuration: duration,
		Parallelizable:    true,
		RollbackPossible:  true,
	}
}

func validatePhase(transfer time.Duration) Phase {
	duration := time.Duration(float64(transfer) * 0.2)
	if duration < 30*time.Second {
		duration = 30 * time.Second
	}
	return Phase{
		Name:              "validate",
		Description:       "Sample the migrated keyspace and compare source against target",
		EstimatedDuration: duration,
		Parallelizable:    true,
		RollbackPossible:  true,
	}
}

func cutoverPhase(downtime time.Duration) Phase {
	return Phase{
		Name:              "cutover",
		Description:       "Switch the application's store endpoint to the target",
		EstimatedDuration: downtime,
		RollbackPossible:  false,
	}
}

func risksFor(profile *ScopeProfile) []string {
	var risks []string

	if profile.TotalKeys > 1_000_000 {
		risks = append(risks, fmt.Sprintf(
			"large dataset (%d keys): expect extended migration time", profile.TotalKeys))
	}
	if hashes := profile.TypeCounts[store.KindHash]; hashes > 1000 {
		risks = append(risks, fmt.Sprintf(
			"%d hash keys require field-by-field transfer and special handling", hashes))
	}
	if profile.EstimatedMemoryBytes > 1<<30 {
		risks = append(risks, fmt.Sprintf(
			"estimated %d MiB of data: bulk transfer may impact source performance",
			profile.EstimatedMemoryBytes>>20))
	}

	return risks
}

func recommendationsFor(profile *ScopeProfile, strategy Strategy) []string {
	var recs []string

	if profile.TotalKeys > 50_000 {
		recs = append(recs, "schedule the migration during a low-traffic window")
	}
	if strategy != StrategySimple {
		recs = append(recs, "prepare the application for dual-write before starting the transfer")
	}
	if profile.TTLBuckets["persistent"] == 0 && profile.TotalKeys > 0 {
		recs = append(recs, "every sampled key expires; consider whether migrating short-lived keys is worthwhile")
	}

	return recs
}
