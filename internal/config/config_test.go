package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Defaults()
	if cfg != want {
		t.Fatalf("Load() = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
session:
  ttl: 3d
research:
  options_per_gap: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if time.Duration(cfg.Session.TTL) != 3*24*time.Hour {
		t.Errorf("session.ttl = %s, want 72h", time.Duration(cfg.Session.TTL))
	}
	if cfg.Research.OptionsPerGap != 5 {
		t.Errorf("research.options_per_gap = %d, want 5", cfg.Research.OptionsPerGap)
	}
	// Everything else should still carry its default.
	if time.Duration(cfg.Session.UserIdleReminder) != 30*time.Minute {
		t.Errorf("session.user_idle_reminder = %s, want 30m (default)", time.Duration(cfg.Session.UserIdleReminder))
	}
	if cfg.TRD.QualityThreshold != 90 {
		t.Errorf("trd.quality_threshold = %d, want 90 (default)", cfg.TRD.QualityThreshold)
	}
}

func TestLoad_DayAndPlainDurationSuffixes(t *testing.T) {
	path := writeConfig(t, `
node:
  default_timeout: 45s
research:
  cache_ttl: 1.5d
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if time.Duration(cfg.Node.DefaultTimeout) != 45*time.Second {
		t.Errorf("node.default_timeout = %s, want 45s", time.Duration(cfg.Node.DefaultTimeout))
	}
	if time.Duration(cfg.Research.CacheTTL) != 36*time.Hour {
		t.Errorf("research.cache_ttl = %s, want 36h", time.Duration(cfg.Research.CacheTTL))
	}
}

func TestLoad_RejectsOptionsPerGapOutOfRange(t *testing.T) {
	path := writeConfig(t, "research:\n  options_per_gap: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for options_per_gap below the [2,5] bound")
	}
}

func TestLoad_RejectsNonDefaultMaxRegenerations(t *testing.T) {
	path := writeConfig(t, "trd:\n  max_regenerations: 5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error overriding the fixed max_regenerations cap")
	}
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	path := writeConfig(t, "session:\n  ttl: not-a-duration\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a malformed duration string")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}
