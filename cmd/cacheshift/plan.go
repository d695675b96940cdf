package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cacheshift/cacheshift/internal/migration"
)

// planCmd analyzes the source keyspace and prints the staged plan
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Analyze the source keyspace and print a migration plan",
	Long: `Inspect the source store, profile the effective keyspace (counts, types,
memory, TTL distribution) and derive a staged execution plan with risks
and recommendations. Neither store is mutated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		coord, err := migration.NewCoordinator(cfg, log)
		if err != nil {
			return err
		}
		defer coord.Close()

		plan, profile, err := coord.Plan(cmd.Context())
		if err != nil {
			return err
		}

		renderProfile(profile)
		renderPlan(plan)
		return nil
	},
}

func renderProfile(profile *migration.ScopeProfile) {
	fmt.Printf("\nKeyspace profile\n")
	fmt.Printf("  Total keys:        %d\n", profile.TotalKeys)
	fmt.Printf("  Sampled keys:      %d\n", profile.SampledKeys)
	fmt.Printf("  Estimated memory:  %s\n", formatBytes(profile.EstimatedMemoryBytes))
	fmt.Printf("  Complexity score:  %.1f\n", profile.ComplexityScore)
	if len(profile.TypeCounts) > 0 {
		fmt.Printf("  Types:\n")
		for kind, count := range profile.TypeCounts {
			fmt.Printf("    %-8s %d\n", kind, count)
		}
	}
	if len(profile.TTLBuckets) > 0 {
		fmt.Printf("  TTL distribution:\n")
		for bucket, count := range profile.TTLBuckets {
			fmt.Printf("    %-12s %d\n", bucket, count)
		}
	}
}

func renderPlan(plan *migration.MigrationPlan) {
	fmt.Printf("\nMigration plan\n")
	fmt.Printf("  Strategy:            %s\n", plan.Strategy)
	fmt.Printf("  Estimated duration:  %s\n", plan.EstimatedDuration)
	fmt.Printf("  Estimated downtime:  %s\n", plan.EstimatedDowntime)

	fmt.Printf("  Phases:\n")
	for i, phase := range plan.Phases {
		flags := ""
		if phase.Parallelizable {
			flags += " [parallel]"
		}
		if phase.RollbackPossible {
			flags += " [rollback possible]"
		}
		fmt.Printf("    %d. %-18s %-10s%s\n       %s\n",
			i+1, phase.Name, phase.EstimatedDuration, flags, phase.Description)
	}

	if len(plan.Risks) > 0 {
		fmt.Printf("  Risks:\n")
		for _, risk := range plan.Risks {
			fmt.Printf("    - %s\n", risk)
		}
	}
	if len(plan.Recommendations) > 0 {
		fmt.Printf("  Recommendations:\n")
		for _, rec := range plan.Recommendations {
			fmt.Printf("    - %s\n", rec)
		}
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
