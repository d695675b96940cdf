package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cacheshift/cacheshift/internal/migration"
)

var cutoverMinScore float64

// cutoverCmd gates the endpoint switch on a fresh consistency check
var cutoverCmd = &cobra.Command{
	Use:   "cutover",
	Short: "Verify the target is ready and print the cutover endpoint",
	Long: `Run a fresh consistency check and, when the score meets the threshold,
print the target endpoint for the consuming application. Rewriting the
application's configuration is left to the operator; this command only
verifies the precondition.`,
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

		report, err := coord.Validate(cmd.Context())
		if err != nil {
			return err
		}

		renderValidation(report)

		if report.ConsistencyScore < cutoverMinScore {
			fmt.Printf("\nNot ready for cutover: consistency %.2f%% is below the %.2f%% threshold\n",
				report.ConsistencyScore, cutoverMinScore)
			os.Exit(1)
		}

		fmt.Printf("\nTarget is ready for cutover. Point the application at:\n  %s\n",
			coord.TargetEndpoint())
		return nil
	},
}

func init() {
	cutoverCmd.Flags().Float64Var(&cutoverMinScore, "min-score", 99.0,
		"Minimum consistency score required for cutover")
}
