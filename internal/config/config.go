// Package config loads velocity's TOML configuration and locates its
// data directories.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/OptimiLabs/velocity/internal/pricing"
	"github.com/OptimiLabs/velocity/internal/source"
)

// Config holds all velocity configuration.
type Config struct {
	General GeneralConfig    `toml:"general"`
	Index   IndexConfig      `toml:"index"`
	Pricing PricingOverrides `toml:"pricing"`
}

// GeneralConfig holds provider data-directory locations.
type GeneralConfig struct {
	ClaudeDir string `toml:"claude_dir,omitempty"`
	CodexDir  string `toml:"codex_dir,omitempty"`
	GeminiDir string `toml:"gemini_dir,omitempty"`
}

// IndexConfig holds indexing behavior settings.
type IndexConfig struct {
	BatchWidth           int   `toml:"batch_width"`
	BatchDelayMs         int   `toml:"batch_delay_ms"`
	DefaultContextWindow int64 `toml:"default_context_window"`
	LatencyCeilingSecs   int   `toml:"latency_ceiling_secs"`
}

// PricingOverrides allows user-defined rates for specific models.
type PricingOverrides struct {
	Overrides map[string]ModelRateOverride `toml:"overrides,omitempty"`
}

// ModelRateOverride holds per-model rate overrides. Unset fields fall
// back to zero, which marks the model unpriced rather than guessing.
type ModelRateOverride struct {
	InputPerMTok      *float64 `toml:"input_per_mtok,omitempty"`
	OutputPerMTok     *float64 `toml:"output_per_mtok,omitempty"`
	CacheReadPerMTok  *float64 `toml:"cache_read_per_mtok,omitempty"`
	CacheWritePerMTok *float64 `toml:"cache_write_per_mtok,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		General: GeneralConfig{
			ClaudeDir: filepath.Join(home, ".claude"),
			CodexDir:  filepath.Join(home, ".codex"),
			GeminiDir: filepath.Join(home, ".gemini"),
		},
		Index: IndexConfig{
			BatchWidth:           8,
			DefaultContextWindow: 200000,
			LatencyCeilingSecs:   300,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "velocity")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "velocity")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// IndexDir returns the XDG-compliant cache directory holding the index.
func IndexDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "velocity")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "velocity")
}

// IndexPath returns the full path to the index database.
func IndexPath() string {
	return filepath.Join(IndexDir(), "index.db")
}

// Load reads the config file at path, returning defaults when it does
// not exist. An empty path means ConfigPath().
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to its default location.
func Save(cfg Config) error {
	if err := os.MkdirAll(ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Roots maps the configured provider directories to a scan root set.
func (c Config) Roots() source.Roots {
	return source.Roots{
		ClaudeDir: c.General.ClaudeDir,
		CodexDir:  c.General.CodexDir,
		GeminiDir: c.General.GeminiDir,
	}
}

// BatchDelay returns the configured inter-batch pause.
func (c Config) BatchDelay() time.Duration {
	return time.Duration(c.Index.BatchDelayMs) * time.Millisecond
}

// LatencyCeiling returns the configured latency sanity ceiling.
func (c Config) LatencyCeiling() time.Duration {
	return time.Duration(c.Index.LatencyCeilingSecs) * time.Second
}

// Resolver builds a pricing resolver with user overrides applied.
func (c Config) Resolver() *pricing.Resolver {
	if len(c.Pricing.Overrides) == 0 {
		return pricing.NewResolver(nil)
	}
	overrides := make(map[string]pricing.Rate, len(c.Pricing.Overrides))
	for name, o := range c.Pricing.Overrides {
		overrides[name] = pricing.Rate{
			InputPerMTok:      deref(o.InputPerMTok),
			OutputPerMTok:     deref(o.OutputPerMTok),
			CacheReadPerMTok:  deref(o.CacheReadPerMTok),
			CacheWritePerMTok: deref(o.CacheWritePerMTok),
		}
	}
	return pricing.NewResolver(overrides)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
