package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyInclude indicates no include patterns were configured
	ErrEmptyInclude = errors.New("empty include patterns")

	// ErrInvalidWorkers indicates a negative worker count
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidCacheSize indicates a negative cache size
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrInvalidPattern indicates a regular expression that does not compile
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrInvalidThreshold indicates an out-of-range transform threshold
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidOffset indicates a negative release offset
	ErrInvalidOffset = errors.New("invalid release offset")

	// ErrEmptyFileTypes indicates no file types for buggy-file extraction
	ErrEmptyFileTypes = errors.New("empty file types")

	// ErrEmptyDatabase indicates a missing database path
	ErrEmptyDatabase = errors.New("empty database path")

	// ErrInvalidLogLevel indicates an unsupported log level
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat indicates an unsupported log format
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateScan(&cfg.Scan); err != nil {
		errs = append(errs, err)
	}

	if err := validateDataset(&cfg.Dataset); err != nil {
		errs = append(errs, err)
	}

	if err := validateGit(&cfg.Git); err != nil {
		errs = append(errs, err)
	}

	if strings.TrimSpace(cfg.Storage.Database) == "" {
		errs = append(errs, fmt.Errorf("%w: storage.database is required", ErrEmptyDatabase))
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateScan(cfg *ScanConfig) error {
	var errs []error

	if len(cfg.Include) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one include pattern required", ErrEmptyInclude))
	}

	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidWorkers, cfg.Workers))
	}

	// Zero disables the cache
	if cfg.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: cache_size cannot be negative, got %d", ErrInvalidCacheSize, cfg.CacheSize))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateDataset(cfg *DatasetConfig) error {
	var errs []error

	if cfg.ExcludePattern != "" {
		if _, err := regexp.Compile(cfg.ExcludePattern); err != nil {
			errs = append(errs, fmt.Errorf("%w: exclude_pattern: %v", ErrInvalidPattern, err))
		}
	}

	if cfg.MaxZeroFraction < 0 || cfg.MaxZeroFraction > 1 {
		errs = append(errs, fmt.Errorf("%w: max_zero_fraction must be within [0, 1], got %.2f", ErrInvalidThreshold, cfg.MaxZeroFraction))
	}

	if cfg.ZThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%w: z_threshold must be positive, got %.2f", ErrInvalidThreshold, cfg.ZThreshold))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateGit(cfg *GitConfig) error {
	var errs []error

	if _, err := regexp.Compile(cfg.TagPattern); err != nil {
		errs = append(errs, fmt.Errorf("%w: tag_pattern: %v", ErrInvalidPattern, err))
	}

	if _, err := regexp.Compile(cfg.BugfixPattern); err != nil {
		errs = append(errs, fmt.Errorf("%w: bugfix_pattern: %v", ErrInvalidPattern, err))
	}

	if cfg.TargetOffset < 0 {
		errs = append(errs, fmt.Errorf("%w: target_offset cannot be negative, got %d", ErrInvalidOffset, cfg.TargetOffset))
	}

	if len(cfg.FileTypes) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one file type required", ErrEmptyFileTypes))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	var errs []error

	if _, err := parseLevel(cfg.Level); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(cfg.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'text' or 'json', got '%s'", ErrInvalidLogFormat, cfg.Format))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
// Every wrapped sentinel stays reachable through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return &validationError{msg: "validation failed:\n  - " + strings.Join(msgs, "\n  - "), errs: errs}
}

type validationError struct {
	msg  string
	errs []error
}

func (e *validationError) Error() string   { return e.msg }
func (e *validationError) Unwrap() []error { return e.errs }
