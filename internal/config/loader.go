package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
}

// NewLoader creates a new configuration loader for the given root directory.
// The config file is looked up as .pymetrix/config.yml (or .yaml) below it.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// NewFileLoader creates a loader reading an explicit config file, which must exist.
func NewFileLoader(path string) Loader {
	return &loader{
		configFile: path,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (PYMETRIX_*)
// 2. Config file (.pymetrix/config.yml, .pymetrix/config.yaml or the explicit file)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(l.rootDir, ".pymetrix"))
	}

	// Replace . with _ in env var names (e.g., PYMETRIX_SCAN_WORKERS)
	v.SetEnvPrefix("PYMETRIX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Scalar keys are bound explicitly so Unmarshal sees env-only values
	for _, key := range []string{
		"scan.workers",
		"scan.cache_size",
		"dataset.output_dir",
		"dataset.include_calls",
		"dataset.exclude_pattern",
		"dataset.max_zero_fraction",
		"dataset.z_threshold",
		"git.repository",
		"git.tag_pattern",
		"git.target_offset",
		"git.bugfix_pattern",
		"storage.database",
		"logging.level",
		"logging.format",
	} {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound || l.configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("scan.include", defaults.Scan.Include)
	v.SetDefault("scan.ignore", defaults.Scan.Ignore)
	v.SetDefault("scan.workers", defaults.Scan.Workers)
	v.SetDefault("scan.cache_size", defaults.Scan.CacheSize)

	v.SetDefault("dataset.output_dir", defaults.Dataset.OutputDir)
	v.SetDefault("dataset.include_calls", defaults.Dataset.IncludeCalls)
	v.SetDefault("dataset.exclude_pattern", defaults.Dataset.ExcludePattern)
	v.SetDefault("dataset.max_zero_fraction", defaults.Dataset.MaxZeroFraction)
	v.SetDefault("dataset.z_threshold", defaults.Dataset.ZThreshold)

	v.SetDefault("git.repository", defaults.Git.Repository)
	v.SetDefault("git.tag_pattern", defaults.Git.TagPattern)
	v.SetDefault("git.target_offset", defaults.Git.TargetOffset)
	v.SetDefault("git.bugfix_pattern", defaults.Git.BugfixPattern)
	v.SetDefault("git.file_types", defaults.Git.FileTypes)

	v.SetDefault("storage.database", defaults.Storage.Database)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
}
