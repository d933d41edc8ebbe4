package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data_dir: /data/faces\nmale_class: 0\nepochs: 3\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/data/faces" || cfg.Epochs != 3 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ImageSize != 128 || cfg.BatchSize != 32 || cfg.Seed != 42 || cfg.ValidationSplit != 0.2 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.NumWorkers <= 0 {
		t.Fatalf("num_workers not derived: %d", cfg.NumWorkers)
	}
	if cfg.MaleClass == nil || *cfg.MaleClass != 0 {
		t.Fatalf("male_class not loaded")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "data_dir: x\nmale_class: 1\nsteps: 10\n"))
	if err == nil || !strings.Contains(err.Error(), "steps") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateRequiresMaleClass(t *testing.T) {
	if _, err := Load(writeConfig(t, "data_dir: x\n")); err == nil || !strings.Contains(err.Error(), "male_class") {
		t.Fatalf("expected male_class error, got %v", err)
	}
	if _, err := Load(writeConfig(t, "data_dir: x\nmale_class: 2\n")); err == nil {
		t.Fatal("expected male_class=2 to be rejected")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{
		DataDir:   "/faces",
		Epochs:    2,
		Seed:      7,
		MaleClass: 1,
		Predict:   []string{"a.jpg", "b.jpg"},
	})
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.DataDir != "/faces" || cfg.Epochs != 2 || cfg.Seed != 7 || *cfg.MaleClass != 1 || len(cfg.Predict) != 2 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	cfg.ApplyOverrides(Overrides{MaleClass: -1, BatchSize: 0})
	if *cfg.MaleClass != 1 || cfg.BatchSize != 32 {
		t.Fatalf("zero overrides changed config: %+v", cfg)
	}
}

func TestDefaultConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("Load default.yaml: %v", err)
	}
	if cfg.Epochs != 50 || cfg.LearningRate != 0.001 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}
