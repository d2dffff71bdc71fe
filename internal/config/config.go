// Package config loads the engine's configuration: worker count,
// meta/unpack/temp roots, queue drain timing, the signature chunk
// size, and scan-exclude glob patterns.
//
// Resolution follows a flag > env > config file > default precedence
// chain, backed by go-toml/v2 for the on-disk format.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"bangscan/internal/bangerr"
)

// Config is the fully-resolved configuration for one scan run.
type Config struct {
	Workers          int           `toml:"workers"`
	MetaRoot         string        `toml:"meta_root"`
	UnpackRoot       string        `toml:"unpack_root"`
	TempRoot         string        `toml:"temp_root"`
	QueueIdleTimeout time.Duration `toml:"queue_idle_timeout"`
	SignatureChunkSize int         `toml:"signature_chunk_size"`
	ExcludeGlobs     []string      `toml:"exclude_globs"`
	ContentIndexPath string        `toml:"content_index_path"`
}

// Default returns the built-in baseline every other source overrides.
func Default() Config {
	return Config{
		Workers:            4,
		MetaRoot:           "./bang-meta",
		UnpackRoot:         "./bang-unpack",
		TempRoot:           os.TempDir(),
		QueueIdleTimeout:   2 * time.Second,
		SignatureChunkSize: 1 << 20,
		ContentIndexPath:   "./bang-meta/.contentindex",
	}
}

// Load reads a TOML config file at path, falling back to Default()
// for every field the file doesn't set. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, bangerr.Wrap(bangerr.ConfigurationError, fmt.Errorf("config: read %s: %w", path, err))
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, bangerr.Wrap(bangerr.ConfigurationError, fmt.Errorf("config: parse %s: %w", path, err))
	}
	return cfg, nil
}

// ApplyEnv overlays environment variable overrides for the flags that
// make sense to override without editing the TOML file.
func (c Config) ApplyEnv() Config {
	if v := os.Getenv("BANG_META_ROOT"); v != "" {
		c.MetaRoot = v
	}
	if v := os.Getenv("BANG_UNPACK_ROOT"); v != "" {
		c.UnpackRoot = v
	}
	if v := os.Getenv("BANG_WORKERS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			c.Workers = n
		}
	}
	return c
}

// Validate checks the resolved configuration is usable: a
// ConfigurationError here means the run should abort before any
// worker starts, since a bad root or duplicate registration is fatal
// to the whole run, not scoped to one job.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return bangerr.New(bangerr.ConfigurationError, "workers must be >= 1")
	}
	if c.MetaRoot == "" {
		return bangerr.New(bangerr.ConfigurationError, "meta_root must not be empty")
	}
	if c.SignatureChunkSize < 1 {
		return bangerr.New(bangerr.ConfigurationError, "signature_chunk_size must be >= 1")
	}
	for _, g := range c.ExcludeGlobs {
		if !doublestar.ValidatePattern(g) {
			return bangerr.New(bangerr.ConfigurationError, fmt.Sprintf("invalid exclude_globs pattern %q", g))
		}
	}
	return nil
}

// Excluded reports whether relPath matches any configured
// exclude_globs pattern, checked against a root-relative, forward-
// slash path (doublestar works on '/'-separated patterns regardless
// of host OS).
func (c Config) Excluded(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, g := range c.ExcludeGlobs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}
	return false
}
