package migration

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries every knob for one migration run. It is built once,
// validated before any connection is opened, and never mutated afterwards.
type Config struct {
	// Source and Target are store connection strings:
	// [redis://|rediss://][user[:password]@]host[:port][/db]
	Source string `yaml:"source"`
	Target string `yaml:"target"`

	// BatchSize is the number of keys per transfer unit.
	BatchSize int `yaml:"batch_size"`
	// Workers is the number of concurrent transfer workers.
	Workers int `yaml:"workers"`

	// IncludePatterns select keys; ExcludePatterns are removed from the
	// selection afterwards. The effective keyspace is the union of all
	// include matches minus the union of all exclude matches.
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns,omitempty"`

	// PreserveTTL carries key expirations to the target.
	PreserveTTL bool `yaml:"preserve_ttl"`
	// VerifyIntegrity runs the consistency validator after the transfer.
	VerifyIntegrity bool `yaml:"verify_integrity"`

	// DualWriteWindow is how long the consuming application should write
	// to both stores before cutover. Planning input only; the engine
	// never performs dual writes itself.
	DualWriteWindow time.Duration `yaml:"dual_write_window,omitempty"`
	// MigrationTimeout bounds the transfer phase. In-flight batches are
	// allowed to finish; no new batch starts past the deadline. Zero
	// means no deadline.
	MigrationTimeout time.Duration `yaml:"migration_timeout,omitempty"`
	// ConsistencyCheckInterval is how often long-running drivers should
	// re-validate after the initial transfer.
	ConsistencyCheckInterval time.Duration `yaml:"consistency_check_interval,omitempty"`
}

// DefaultConfig returns a config with the documented defaults applied.
// Source and Target must still be filled in.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:                1000,
		Workers:                  4,
		IncludePatterns:          []string{"*"},
		PreserveTTL:              true,
		VerifyIntegrity:          true,
		DualWriteWindow:          time.Hour,
		ConsistencyCheckInterval: 5 * time.Minute,
	}
}

// LoadConfigFile reads a yaml config file over the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects invalid configurations before any connection is opened.
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("source endpoint is required")
	}
	if c.Target == "" {
		return fmt.Errorf("target endpoint is required")
	}
	if c.Source == c.Target {
		return fmt.Errorf("source and target endpoints must differ")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be greater than 0, got %d", c.BatchSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if len(c.IncludePatterns) == 0 {
		return fmt.Errorf("at least one include pattern is required")
	}
	if c.MigrationTimeout < 0 {
		return fmt.Errorf("migration_timeout must not be negative")
	}
	return nil
}
