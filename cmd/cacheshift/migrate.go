package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cacheshift/cacheshift/internal/metrics"
	"github.com/cacheshift/cacheshift/internal/migration"
)

// migrateCmd runs the full migration pipeline
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the effective keyspace from source to target",
	Long: `Run the full migration pipeline: profile the source keyspace, transfer
every matching key in concurrent batches, validate a sample of the result
and compare store performance. The target store is mutated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var opts []migration.Option
		if flagMetricsAddr != "" {
			runID := uuid.NewString()
			collector := metrics.New(runID)
			opts = append(opts, migration.WithRunID(runID), migration.WithMetrics(collector))

			server, errCh := collector.Serve(flagMetricsAddr)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				server.Shutdown(shutdownCtx)
			}()
			go func() {
				if err := <-errCh; err != nil {
					log.Warnf("metrics server: %v", err)
				}
			}()
			log.Infof("serving metrics on %s/metrics", flagMetricsAddr)
		}

		coord, err := migration.NewCoordinator(cfg, log, opts...)
		if err != nil {
			return err
		}
		defer coord.Close()

		stop := make(chan struct{})
		go progressLoop(coord, stop)

		result := coord.Migrate(cmd.Context())
		close(stop)

		renderResult(result)
		if !result.Success {
			os.Exit(1)
		}
		return nil
	},
}

// progressLoop periodically logs transfer progress until stopped.
func progressLoop(coord *migration.Coordinator, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if coord.State() != migration.StateMigrating {
				continue
			}
			status := coord.Status()
			if status.TotalKeys == 0 {
				continue
			}
			log.WithFields(map[string]string{
				"migrated": fmt.Sprintf("%d/%d", status.MigratedKeys, status.TotalKeys),
				"failed":   fmt.Sprintf("%d", status.FailedKeys),
				"batches":  fmt.Sprintf("%d/%d", status.CompletedBatches, status.TotalBatches),
				"rate":     fmt.Sprintf("%.0f keys/s", status.RatePerSecond),
			}).Info("transfer in progress")
		}
	}
}

func renderResult(result *migration.MigrationResult) {
	fmt.Printf("\nMigration result (run %s)\n", result.RunID)
	if result.Success {
		fmt.Printf("  Status:     success\n")
	} else {
		fmt.Printf("  Status:     FAILED\n")
	}
	fmt.Printf("  Message:    %s\n", result.Message)
	fmt.Printf("  Keys:       %d migrated, %d failed, %d total\n",
		result.MigratedKeys, result.FailedKeys, result.TotalKeys)
	fmt.Printf("  Duration:   %s\n", result.Duration.Round(time.Millisecond))

	if result.Validation != nil {
		renderValidation(result.Validation)
	}
	if result.Performance != nil {
		renderPerformance(result.Performance)
	}

	if len(result.Errors) > 0 {
		limit := len(result.Errors)
		if limit > 10 {
			limit = 10
		}
		fmt.Printf("  Errors (%d total, first %d):\n", len(result.Errors), limit)
		for _, msg := range result.Errors[:limit] {
			fmt.Printf("    - %s\n", msg)
		}
	}
}
