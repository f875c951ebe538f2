package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OptimiLabs/velocity/internal/model"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.BatchWidth != 8 || cfg.Index.DefaultContextWindow != 200000 {
		t.Errorf("defaults = %+v", cfg.Index)
	}
	if cfg.General.ClaudeDir == "" || cfg.General.CodexDir == "" || cfg.General.GeminiDir == "" {
		t.Errorf("provider dirs unset: %+v", cfg.General)
	}
	if cfg.LatencyCeiling() != 5*time.Minute {
		t.Errorf("latency ceiling = %v", cfg.LatencyCeiling())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[general]
claude_dir = "/data/claude"

[index]
batch_width = 4
batch_delay_ms = 50
default_context_window = 200000
latency_ceiling_secs = 120

[pricing.overrides."acme-large-1"]
input_per_mtok = 2.0
output_per_mtok = 8.0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.ClaudeDir != "/data/claude" {
		t.Errorf("claude dir = %q", cfg.General.ClaudeDir)
	}
	if cfg.Index.BatchWidth != 4 || cfg.BatchDelay() != 50*time.Millisecond {
		t.Errorf("index = %+v", cfg.Index)
	}

	res := cfg.Resolver().Resolve("acme-large-1", model.TokenUsage{Input: 1_000_000})
	if res.Status != model.PricingPriced {
		t.Fatalf("override status = %q, want priced", res.Status)
	}
	if res.Cost != 2.0 {
		t.Errorf("cost = %v, want 2.0", res.Cost)
	}
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[general\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want parse error")
	}
}

func TestDetectPlan(t *testing.T) {
	dir := t.TempDir()
	if got := DetectPlan(dir); got != "api" {
		t.Errorf("missing file plan = %q, want api", got)
	}

	if err := os.WriteFile(filepath.Join(dir, ".claude.json"), []byte(`{"billingType":"stripe_subscription"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := DetectPlan(dir); got != "max" {
		t.Errorf("plan = %q, want max", got)
	}
}
