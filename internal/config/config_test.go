package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadJSONConfig(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.json", `{
		"thread_num": 4,
		"always_active": 1,
		"active_ms": 200,
		"recorder": {
			"record_dir": "/tmp/rec",
			"snapshot_intervals": [{"name": "hourly", "period_sec": 3600}]
		}
	}`)

	cfg, err := Load(p, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runner.ThreadNum != 4 || cfg.Runner.AlwaysActiveThreadNum != 1 {
		t.Fatalf("unexpected runner config: %+v", cfg.Runner)
	}
	if cfg.Recorder.RecordDir != "/tmp/rec" {
		t.Fatalf("unexpected record dir: %s", cfg.Recorder.RecordDir)
	}
	if cfg.Recorder.SnapshotIntervals[0].MaxNumOfCopies != 48 {
		t.Fatalf("expected default max_num_of_copies 48, got %d", cfg.Recorder.SnapshotIntervals[0].MaxNumOfCopies)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", "thread_num: 2\nrecorder:\n  record_dir: /tmp/y\n")

	cfg, err := Load(p, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runner.ThreadNum != 2 {
		t.Fatalf("expected thread_num 2, got %d", cfg.Runner.ThreadNum)
	}
}

func TestLoadMissingRequiredFieldNonStrictFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.json", `{"recorder": {"snapshot_intervals": [{"name": "x"}]}}`)

	cfg, err := Load(p, false)
	if err != nil {
		t.Fatalf("non-strict load should not return an error: %v", err)
	}
	if len(cfg.Recorder.SnapshotIntervals) != 0 {
		t.Fatalf("expected defaults substituted, got %+v", cfg.Recorder)
	}
}

func TestLoadEmptyPathProducesDefaults(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runner.ThreadNum != 0 {
		t.Fatalf("expected zero-value default runner config")
	}
}

func TestEnvOverridesFileValues(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.json", `{"thread_num": 4}`)

	t.Setenv("COREBUS_THREAD_NUM", "16")
	cfg, err := Load(p, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Runner.ThreadNum != 16 {
		t.Fatalf("expected env override to win, got %d", cfg.Runner.ThreadNum)
	}
}
