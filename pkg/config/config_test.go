package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"courier/pkg/comms"
	"courier/pkg/threshold"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxContextTokens != threshold.DefaultMaxTokens {
		t.Errorf("MaxContextTokens = %d, want %d", cfg.MaxContextTokens, threshold.DefaultMaxTokens)
	}
	if cfg.Agent != "claude" {
		t.Errorf("Agent = %q, want claude", cfg.Agent)
	}
	if cfg.Grace() != 200*time.Millisecond {
		t.Errorf("Grace = %v, want 200ms", cfg.Grace())
	}
	urgent := cfg.AlwaysUrgent()
	if !urgent[comms.KindBlocker] || len(urgent) != 1 {
		t.Errorf("AlwaysUrgent = %v, want only blocker", urgent)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	taskDir := t.TempDir()
	content := `
max_context_tokens = 100000
always_urgent_kinds = ["blocker", "stop"]

[tmux.worker]
session = "task"
pane = "task:0.1"
`
	if err := os.WriteFile(filepath.Join(taskDir, ConfigFile), []byte(content), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := Load(taskDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxContextTokens != 100000 {
		t.Errorf("MaxContextTokens = %d, want 100000", cfg.MaxContextTokens)
	}
	if cfg.Agent != "claude" {
		t.Errorf("unset Agent = %q, want default claude", cfg.Agent)
	}
	urgent := cfg.AlwaysUrgent()
	if !urgent[comms.KindBlocker] || !urgent[comms.KindStop] {
		t.Errorf("AlwaysUrgent = %v, want blocker and stop", urgent)
	}
	target, ok := cfg.Target(comms.RoleWorker)
	if !ok || target.Session != "task" || target.Pane != "task:0.1" {
		t.Errorf("Target(worker) = %+v/%v, want task/task:0.1", target, ok)
	}
	if _, ok := cfg.Target(comms.RoleOrchestrator); ok {
		t.Error("Target(orchestrator) should be unset")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	taskDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(taskDir, ConfigFile), []byte("max_context_tokens = ["), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Load(taskDir); err == nil {
		t.Fatal("expected parse error for malformed config")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	taskDir := t.TempDir()
	cfg := Default()
	cfg.MaxContextTokens = 150000
	cfg.Agent = "claude"
	cfg.Tmux["orchestrator"] = TmuxTarget{Session: "hq", Pane: "hq:0.0"}

	if err := Save(taskDir, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(taskDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.MaxContextTokens != 150000 {
		t.Errorf("MaxContextTokens = %d, want 150000", loaded.MaxContextTokens)
	}
	target, ok := loaded.Target(comms.RoleOrchestrator)
	if !ok || target.Session != "hq" {
		t.Errorf("Target(orchestrator) = %+v/%v, want hq", target, ok)
	}
}
