// Package config provides configuration loading for pymetrix.
//
// Configuration Hierarchy (highest to lowest priority):
//  1. Environment variables (PYMETRIX_*)
//  2. Project config (.pymetrix/config.yml or an explicit --config file)
//  3. Built-in defaults
//
// Nested fields map to environment variables with underscores, e.g.
// PYMETRIX_SCAN_WORKERS or PYMETRIX_DATASET_Z_THRESHOLD.
package config

// Config represents the complete pymetrix configuration.
type Config struct {
	Scan    ScanConfig    `yaml:"scan" mapstructure:"scan"`
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Git     GitConfig     `yaml:"git" mapstructure:"git"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ScanConfig defines which files are analyzed and how.
type ScanConfig struct {
	Include   []string `yaml:"include" mapstructure:"include"`       // glob patterns for Python files
	Ignore    []string `yaml:"ignore" mapstructure:"ignore"`         // glob patterns to skip
	Workers   int      `yaml:"workers" mapstructure:"workers"`       // 0 means one per CPU
	CacheSize int      `yaml:"cache_size" mapstructure:"cache_size"` // max cached records, 0 disables caching
}

// DatasetConfig configures the CSV dataset and its transform step.
type DatasetConfig struct {
	OutputDir       string  `yaml:"output_dir" mapstructure:"output_dir"`
	IncludeCalls    bool    `yaml:"include_calls" mapstructure:"include_calls"` // adds NIC and NEC columns
	ExcludePattern  string  `yaml:"exclude_pattern" mapstructure:"exclude_pattern"`
	MaxZeroFraction float64 `yaml:"max_zero_fraction" mapstructure:"max_zero_fraction"`
	ZThreshold      float64 `yaml:"z_threshold" mapstructure:"z_threshold"`
}

// GitConfig configures release selection and bug-fix mining.
type GitConfig struct {
	Repository    string   `yaml:"repository" mapstructure:"repository"`
	TagPattern    string   `yaml:"tag_pattern" mapstructure:"tag_pattern"`
	TargetOffset  int      `yaml:"target_offset" mapstructure:"target_offset"` // 0 is the newest release
	BugfixPattern string   `yaml:"bugfix_pattern" mapstructure:"bugfix_pattern"`
	FileTypes     []string `yaml:"file_types" mapstructure:"file_types"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Database string `yaml:"database" mapstructure:"database"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn or error
	Format string `yaml:"format" mapstructure:"format"` // text or json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Include: []string{"**/*.py"},
			Ignore: []string{
				".git/**",
				".pymetrix/**",
				"__pycache__/**",
				".venv/**",
				"venv/**",
				".tox/**",
				"node_modules/**",
				"build/**",
				"dist/**",
			},
			Workers:   0,
			CacheSize: 10000,
		},
		Dataset: DatasetConfig{
			OutputDir:       ".",
			IncludeCalls:    false,
			ExcludePattern:  `(?i)(test|example|doc|sample)`,
			MaxZeroFraction: 0.5,
			ZThreshold:      3.0,
		},
		Git: GitConfig{
			Repository:    ".",
			TagPattern:    `^([1-9]\d*)\.(\d+)\.(\d+)$`,
			TargetOffset:  2,
			BugfixPattern: `(?i)\b(fix(es|ed)?|bug|defect|fault|regression)\b`,
			FileTypes:     []string{".py"},
		},
		Storage: StorageConfig{
			Database: ".pymetrix/metrics.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
