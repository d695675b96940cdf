package main

import (
	"fmt"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/cacheshift/cacheshift/internal/migration"
)

// Flag values shared by all subcommands. Flags override the config file,
// which overrides the built-in defaults.
var (
	configFile string
	verbose    bool
	logFile    string

	flagSource          string
	flagTarget          string
	flagBatchSize       int
	flagWorkers         int
	flagInclude         []string
	flagExclude         []string
	flagPreserveTTL     bool
	flagVerifyIntegrity bool
	flagTimeout         time.Duration
	flagAskPassword     bool
	flagMetricsAddr     string
)

func setupFlags() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to yaml config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "Also write logs to this file")

	pf.StringVar(&flagSource, "source", "", "Source store endpoint ([redis://]host[:port][/db])")
	pf.StringVar(&flagTarget, "target", "", "Target store endpoint ([redis://]host[:port][/db])")
	pf.IntVar(&flagBatchSize, "batch-size", 0, "Keys per transfer batch (default 1000)")
	pf.IntVar(&flagWorkers, "workers", 0, "Concurrent transfer workers (default 4)")
	pf.StringSliceVar(&flagInclude, "include", nil, "Glob patterns selecting keys (default *)")
	pf.StringSliceVar(&flagExclude, "exclude", nil, "Glob patterns removed from the selection")
	pf.BoolVar(&flagPreserveTTL, "preserve-ttl", true, "Carry key expirations to the target")
	pf.BoolVar(&flagVerifyIntegrity, "verify-integrity", true, "Run the consistency validator after transfer")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Migration deadline (0 = none)")
	pf.BoolVar(&flagAskPassword, "ask-password", false, "Prompt for the store password interactively")
	pf.StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during migration")
}

// loadConfig assembles the run config from defaults, the optional config
// file, and flag overrides, then validates it.
func loadConfig() (*migration.Config, error) {
	cfg := migration.DefaultConfig()
	if configFile != "" {
		loaded, err := migration.LoadConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flagSource != "" {
		cfg.Source = flagSource
	}
	if flagTarget != "" {
		cfg.Target = flagTarget
	}
	if flagBatchSize > 0 {
		cfg.BatchSize = flagBatchSize
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if len(flagInclude) > 0 {
		cfg.IncludePatterns = flagInclude
	}
	if len(flagExclude) > 0 {
		cfg.ExcludePatterns = flagExclude
	}
	// Boolean flags default to true, so only an explicitly passed flag may
	// override the config file.
	if rootCmd.PersistentFlags().Changed("preserve-ttl") {
		cfg.PreserveTTL = flagPreserveTTL
	}
	if rootCmd.PersistentFlags().Changed("verify-integrity") {
		cfg.VerifyIntegrity = flagVerifyIntegrity
	}
	if flagTimeout > 0 {
		cfg.MigrationTimeout = flagTimeout
	}

	if flagAskPassword {
		password, err := promptPassword("Store password: ")
		if err != nil {
			return nil, err
		}
		cfg.Source = injectPassword(cfg.Source, password)
		cfg.Target = injectPassword(cfg.Target, password)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// promptPassword reads a password without echoing it.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("error reading password: %v", err)
	}
	return string(password), nil
}

// injectPassword adds a password to an endpoint that has none.
func injectPassword(endpoint, password string) string {
	if endpoint == "" || password == "" {
		return endpoint
	}

	scheme := ""
	rest := endpoint
	for _, s := range []string{"rediss://", "redis://"} {
		if len(rest) > len(s) && rest[:len(s)] == s {
			scheme = s
			rest = rest[len(s):]
			break
		}
	}
	for _, c := range rest {
		if c == '@' {
			// Endpoint already carries credentials
			return endpoint
		}
	}
	return fmt.Sprintf("%s:%s@%s", scheme, password, rest)
}
