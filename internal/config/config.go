// Package config holds the core's initialization options (§6) and
// server-wide configuration, unmarshalled from the editor's `initialize`
// request payload.
package config

import (
	"time"
)

// LogLevel mirrors the recognized logLevel initialization option.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
	LogLevelTrace LogLevel = "trace"
)

// Config is the fully-resolved set of initialization options, with defaults
// applied for anything the client omitted.
type Config struct {
	LogLevel                LogLevel `yaml:"logLevel" json:"logLevel"`
	ClasspathCache           bool     `yaml:"classpathCache" json:"classpathCache"`
	EnabledImporters         []string `yaml:"enabledImporters" json:"enabledImporters"`
	BackfillSiblingProjects  bool     `yaml:"backfillSiblingProjects" json:"backfillSiblingProjects"`
	ScopeEvictionTTLSeconds  int      `yaml:"scopeEvictionTTLSeconds" json:"scopeEvictionTTLSeconds"`
	MemoryPressureThreshold  float64  `yaml:"memoryPressureThreshold" json:"memoryPressureThreshold"`
	RejectedPackages         []string `yaml:"rejectedPackages" json:"rejectedPackages"`

	// ResolverConcurrency is the Import pool's bound (§5, default 4). Not a
	// recognized initialization option key, but configurable for tests.
	ResolverConcurrency int `yaml:"-" json:"-"`

	// EvictionTickInterval / MemoryPressureSampleInterval back the Schedule
	// pool (§5). Exposed for tests that don't want to wait 30s/5s.
	EvictionTickInterval          time.Duration `yaml:"-" json:"-"`
	MemoryPressureSampleInterval time.Duration `yaml:"-" json:"-"`
}

// Default returns the spec's documented defaults (§6).
func Default() Config {
	return Config{
		LogLevel:                     LogLevelInfo,
		ClasspathCache:               true,
		EnabledImporters:             nil,
		BackfillSiblingProjects:      false,
		ScopeEvictionTTLSeconds:      300,
		MemoryPressureThreshold:      0.85,
		RejectedPackages:             nil,
		ResolverConcurrency:          4,
		EvictionTickInterval:         30 * time.Second,
		MemoryPressureSampleInterval: 5 * time.Second,
	}
}

// TTL returns the configured scope eviction TTL, or 0 if TTL eviction is
// disabled (ScopeEvictionTTLSeconds == 0, per §4.4).
func (c Config) TTL() time.Duration {
	if c.ScopeEvictionTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.ScopeEvictionTTLSeconds) * time.Second
}

// ImporterEnabled reports whether tag is enabled, per "empty means all
// enabled" (§6).
func (c Config) ImporterEnabled(tag string) bool {
	if len(c.EnabledImporters) == 0 {
		return true
	}
	for _, t := range c.EnabledImporters {
		if t == tag {
			return true
		}
	}
	return false
}

// RawOptions mirrors the `initializationOptions` payload the editor sends at
// `initialize` (§6); every field is a pointer so "the client didn't mention
// this key" is distinguishable from "the client explicitly set it to the
// zero value".
type RawOptions struct {
	LogLevel                *LogLevel `yaml:"logLevel" json:"logLevel"`
	ClasspathCache          *bool     `yaml:"classpathCache" json:"classpathCache"`
	EnabledImporters        []string  `yaml:"enabledImporters" json:"enabledImporters"`
	BackfillSiblingProjects *bool     `yaml:"backfillSiblingProjects" json:"backfillSiblingProjects"`
	ScopeEvictionTTLSeconds *int      `yaml:"scopeEvictionTTLSeconds" json:"scopeEvictionTTLSeconds"`
	MemoryPressureThreshold *float64  `yaml:"memoryPressureThreshold" json:"memoryPressureThreshold"`
	RejectedPackages        []string  `yaml:"rejectedPackages" json:"rejectedPackages"`
}

// Merge overlays opts onto a copy of Default(), used when decoding the
// `initialize` request's initializationOptions.
func Merge(opts RawOptions) Config {
	base := Default()
	if opts.LogLevel != nil {
		base.LogLevel = *opts.LogLevel
	}
	if opts.ClasspathCache != nil {
		base.ClasspathCache = *opts.ClasspathCache
	}
	if opts.EnabledImporters != nil {
		base.EnabledImporters = opts.EnabledImporters
	}
	if opts.BackfillSiblingProjects != nil {
		base.BackfillSiblingProjects = *opts.BackfillSiblingProjects
	}
	if opts.ScopeEvictionTTLSeconds != nil {
		base.ScopeEvictionTTLSeconds = *opts.ScopeEvictionTTLSeconds
	}
	if opts.MemoryPressureThreshold != nil {
		base.MemoryPressureThreshold = *opts.MemoryPressureThreshold
	}
	if opts.RejectedPackages != nil {
		base.RejectedPackages = opts.RejectedPackages
	}
	return base
}
