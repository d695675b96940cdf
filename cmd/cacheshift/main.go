package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cacheshift/cacheshift/pkg/logger"
)

var (
	version = "0.1.0"
	// Build information variables, set through -ldflags
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var log *logger.Logger

// printVersionInfo displays detailed version information
func printVersionInfo() {
	fmt.Printf("cacheshift v%s (commit %s, built %s)\n", version, GitCommit, BuildTime)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cacheshift",
	Short: "Cache store migration tool",
	Long: "cacheshift moves the entire keyspace of a source cache store to a target store, " +
		"preserving per-key types and expirations, with consistency validation and " +
		"performance comparison before cutover.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("version").Changed {
			printVersionInfo()
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	setupFlags()
	setupCommands()

	cobra.OnInitialize(func() {
		log = logger.New("cacheshift", version)
		if verbose {
			log.SetMinLevel(logger.LevelDebug)
		}
		if logFile != "" {
			if err := teeLogsToFile(log, logFile); err != nil {
				fmt.Printf("Error opening log file: %v\n", err)
				os.Exit(1)
			}
		}
	})
}

func setupCommands() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(benchmarkCmd)
	rootCmd.AddCommand(cutoverCmd)
	rootCmd.AddCommand(credentialCmd)
}

// teeLogsToFile copies every log entry into a plain-text file alongside
// the colored console output.
func teeLogsToFile(l *logger.Logger, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	entries := l.Subscribe()
	go func() {
		defer f.Close()
		for entry := range entries {
			line := fmt.Sprintf("%s %s %s", entry.Time.Format("2006-01-02 15:04:05.000"),
				entry.Level, entry.Message)
			for k, v := range entry.Fields {
				line += fmt.Sprintf(" %s=%s", k, v)
			}
			fmt.Fprintln(f, line)
		}
	}()

	return nil
}

func main() {
	Execute()
}
