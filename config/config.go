// Package config handles quill.toml runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/quill/runtime"
)

// Config represents a quill.toml runtime configuration.
type Config struct {
	Pool PoolConfig `toml:"pool"`
	GC   GCConfig   `toml:"gc"`
	Log  LogConfig  `toml:"log"`

	// Dir is the directory the quill.toml was loaded from (set at load
	// time).
	Dir string `toml:"-"`
}

// PoolConfig tunes the series allocator.
type PoolConfig struct {
	Capacity int `toml:"capacity"`
}

// GCConfig tunes the collector.
type GCConfig struct {
	Checks bool `toml:"checks"`
	Stress bool `toml:"stress"`
}

// LogConfig tunes runtime logging verbosity per subsystem.
type LogConfig struct {
	// Verbosity maps commonlog verbosity: -1 silent, 0 errors ..
	// 4 debug.
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no quill.toml exists.
func Default() *Config {
	t := runtime.DefaultTuning()
	return &Config{
		Pool: PoolConfig{Capacity: t.PoolCapacity},
		GC:   GCConfig{Checks: t.GCChecks},
		Log:  LogConfig{Verbosity: 0},
	}
}

// Load parses a quill.toml file from the given directory. A missing
// file is not an error; defaults are returned.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "quill.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.Dir = dir
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.Dir = dir

	if cfg.Pool.Capacity < 0 {
		return nil, fmt.Errorf("config: pool.capacity must not be negative")
	}
	return cfg, nil
}

// Tuning converts the configuration into the runtime's tuning knobs.
func (c *Config) Tuning() runtime.Tuning {
	return runtime.Tuning{
		PoolCapacity: c.Pool.Capacity,
		GCChecks:     c.GC.Checks,
		GCStress:     c.GC.Stress,
	}
}

// ApplyLogging configures the commonlog backend verbosity for the
// runtime's logger names. Pass a path to also send the log to a file.
func (c *Config) ApplyLogging(path *string) {
	commonlog.Configure(c.Log.Verbosity, path)
}
