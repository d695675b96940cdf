package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cacheshift/cacheshift/internal/migration"
)

// benchmarkCmd compares performance of the two stores
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Compare latency and throughput of source and target",
	Long: `Measure round-trip latency and set/get/delete throughput of both stores
using disposable keys, and print a go/no-go recommendation. The disposable
keys are removed afterwards.`,
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

		renderPerformance(coord.Benchmark(cmd.Context()))
		return nil
	},
}

func renderPerformance(report *migration.PerformanceReport) {
	fmt.Printf("\nPerformance comparison\n")
	if report.Error != "" {
		fmt.Printf("  Benchmark error: %s\n", report.Error)
		return
	}

	fmt.Printf("  %-10s %-14s %-16s %s\n", "", "latency", "throughput", "server")
	fmt.Printf("  %-10s %-14s %-11.0f ops/s %s\n", "source",
		report.Source.Latency, report.Source.Throughput, serverLabel(report.Source))
	fmt.Printf("  %-10s %-14s %-11.0f ops/s %s\n", "target",
		report.Target.Latency, report.Target.Throughput, serverLabel(report.Target))
	fmt.Printf("  Recommendation: %s\n", report.Recommendation)
}

func serverLabel(bench migration.StoreBenchmark) string {
	if bench.Info.Version == "" {
		return "unknown"
	}
	label := bench.Info.Version
	if bench.Info.Mode != "" {
		label += " (" + bench.Info.Mode + ")"
	}
	return label
}
