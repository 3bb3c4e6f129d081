// Package config provides typed configuration for rewind.
//
// Configuration is assembled in layers, later layers overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file
//  3. REWIND_* environment variables
//
// The merged settings are decoded into Config and validated.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/dshills/rewind/internal/config/loader"
	"github.com/dshills/rewind/internal/engine/history"
	"github.com/dshills/rewind/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REWIND_"

// Config is the complete application configuration.
type Config struct {
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Script  ScriptConfig  `mapstructure:"script" yaml:"script"`
}

// HistoryConfig configures the history manager.
type HistoryConfig struct {
	// MaxItems caps the number of history items. 0 means unbounded.
	MaxItems int `mapstructure:"max_items" yaml:"max_items"`
	// Nesting is "outermost" or "immediate".
	Nesting string `mapstructure:"nesting" yaml:"nesting"`
	// CloneValues deep-copies attribute values recorded by the scene.
	CloneValues bool `mapstructure:"clone_values" yaml:"clone_values"`
	// LeakDetection reports scopes collected without being completed.
	LeakDetection bool `mapstructure:"leak_detection" yaml:"leak_detection"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	// Addr is the listen address for the metrics endpoint; empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// ScriptConfig configures the Lua runtime.
type ScriptConfig struct {
	// InstructionLimit bounds the host API calls per script; 0 is unlimited.
	InstructionLimit int `mapstructure:"instruction_limit" yaml:"instruction_limit"`
	// Timeout bounds the wall-clock time per script; 0 is unlimited.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		History: HistoryConfig{
			MaxItems:      0,
			Nesting:       history.NestOutermost.String(),
			LeakDetection: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Metrics: MetricsConfig{
			Namespace: "rewind",
		},
		Script: ScriptConfig{
			InstructionLimit: 10_000_000,
			Timeout:          30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, the file at path (skipped
// when path is empty or the file does not exist) and the environment.
func Load(path string) (Config, error) {
	return LoadFS(loader.DefaultFS(), path)
}

// LoadFS is Load with a custom file system.
func LoadFS(fsys loader.FileSystem, path string) (Config, error) {
	settings := make(map[string]any)

	if path != "" {
		l, err := loader.ForFile(fsys, path)
		if err != nil {
			return Config{}, err
		}
		fileSettings, err := l.Load()
		if err != nil {
			return Config{}, err
		}
		settings = loader.DeepMerge(settings, fileSettings)
	}

	envSettings, err := loader.NewEnvLoaderWithMapping(EnvPrefix, map[string]string{
		"REWIND_LOG_LEVEL":  "logging.level",
		"REWIND_LOG_FORMAT": "logging.format",
	}).Load()
	if err != nil {
		return Config{}, err
	}
	settings = loader.DeepMerge(settings, envSettings)

	cfg := Default()
	if err := decode(settings, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode applies settings on top of cfg. Unknown keys are rejected.
func decode(settings map[string]any, cfg *Config) error {
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if len(md.Unused) > 0 {
		return &ValidationError{Path: md.Unused[0], Message: "unknown setting", Code: ErrCodeUnknownSetting}
	}
	return nil
}

// Validate checks every setting and returns the first problem found.
func (c Config) Validate() error {
	var errs []error

	if c.History.MaxItems < 0 {
		errs = append(errs, &ValidationError{Path: "history.max_items", Message: "must be >= 0", Value: c.History.MaxItems, Code: ErrCodeOutOfRange})
	}
	if _, err := history.ParseNesting(c.History.Nesting); err != nil {
		errs = append(errs, &ValidationError{Path: "history.nesting", Message: "must be outermost or immediate", Value: c.History.Nesting, Code: ErrCodeInvalidEnum})
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, &ValidationError{Path: "logging.level", Message: "must be debug, info, warn or error", Value: c.Logging.Level, Code: ErrCodeInvalidEnum})
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, &ValidationError{Path: "logging.format", Message: "must be text or json", Value: c.Logging.Format, Code: ErrCodeInvalidEnum})
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, &ValidationError{Path: "metrics.namespace", Message: "required when metrics are enabled", Code: ErrCodeRequiredMissing})
	}
	if c.Script.InstructionLimit < 0 {
		errs = append(errs, &ValidationError{Path: "script.instruction_limit", Message: "must be >= 0", Value: c.Script.InstructionLimit, Code: ErrCodeOutOfRange})
	}
	if c.Script.Timeout < 0 {
		errs = append(errs, &ValidationError{Path: "script.timeout", Message: "must be >= 0", Value: c.Script.Timeout, Code: ErrCodeOutOfRange})
	}

	return errors.Join(errs...)
}

// Nesting returns the parsed history nesting mode.
func (c Config) Nesting() history.Nesting {
	n, _ := history.ParseNesting(c.History.Nesting)
	return n
}

// LoggerConfig returns the logger configuration.
func (c Config) LoggerConfig() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}
