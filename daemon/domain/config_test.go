package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestContextFields(t *testing.T) {
	ctx := Context{
		Config: Config{
			Version:       "1.0.0",
			Port:          8043,
			ShutdownGrace: 5 * time.Minute,
		},
		Hub: NewEventBus(1),
	}

	if ctx.Version != "1.0.0" {
		t.Errorf("expected version %q, got %q", "1.0.0", ctx.Version)
	}
	if ctx.Port != 8043 {
		t.Errorf("expected port 8043, got %d", ctx.Port)
	}
	if ctx.ShutdownGrace != 5*time.Minute {
		t.Errorf("expected 5m grace period, got %v", ctx.ShutdownGrace)
	}
	if ctx.Hub == nil {
		t.Fatal("expected non-nil hub")
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for missing file, got %+v", cfg)
	}
}

func TestLoadConfigFile_Parses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := "port: 9090\nlog_level: debug\nrule_storage_path: /data/rules.json\nalarm_channels:\n  - ntfy://ntfy.sh/ops\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.Port == nil || *cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %v", cfg.Port)
	}
	if cfg.LogLevel == nil || *cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %v", cfg.LogLevel)
	}
	if cfg.RuleStoragePath == nil || *cfg.RuleStoragePath != "/data/rules.json" {
		t.Errorf("expected rule storage path, got %v", cfg.RuleStoragePath)
	}
	if cfg.AlarmChannels == nil || len(*cfg.AlarmChannels) != 1 || (*cfg.AlarmChannels)[0] != "ntfy://ntfy.sh/ops" {
		t.Errorf("expected one alarm channel, got %v", cfg.AlarmChannels)
	}
}
