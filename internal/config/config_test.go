package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"dubflow/internal/config"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected file to be reported missing")
	}
	if cfg.Scope.Tenant != "default" || cfg.Scope.Project != "default" {
		t.Fatalf("unexpected scope defaults: %+v", cfg.Scope)
	}
	if cfg.Scenes.MinSceneSeconds != 6.0 || cfg.Scenes.MaxSceneSeconds != 15.0 {
		t.Fatalf("unexpected scene defaults: %+v", cfg.Scenes)
	}
	if cfg.Scenes.MinLines != 3 || cfg.Scenes.MaxLines != 5 {
		t.Fatalf("unexpected scene line defaults: %+v", cfg.Scenes)
	}
	if !cfg.Steps.Parse || !cfg.Steps.Publish {
		t.Fatalf("expected all steps enabled by default: %+v", cfg.Steps)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[scope]
tenant = "acme"

[steps]
dub = false

[scenes]
max_scene_seconds = 20.0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config to resolve, exists=%v path=%q", exists, resolved)
	}
	if cfg.Scope.Tenant != "acme" {
		t.Fatalf("tenant = %q", cfg.Scope.Tenant)
	}
	if cfg.Steps.Dub {
		t.Fatal("expected dub step disabled")
	}
	if cfg.StepEnabled("dub") {
		t.Fatal("StepEnabled(dub) should be false")
	}
	if cfg.Scenes.MaxSceneSeconds != 20.0 {
		t.Fatalf("max scene seconds = %v", cfg.Scenes.MaxSceneSeconds)
	}
}

func TestValidateRejectsBadStorage(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Provider = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for s3 without bucket")
	}
	cfg.Storage.Provider = "ftp"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown provider")
	}
}

func TestValidateRejectsInvertedSceneBounds(t *testing.T) {
	cfg := config.Default()
	cfg.Scenes.MinSceneSeconds = 20
	cfg.Scenes.MaxSceneSeconds = 10
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for inverted scene bounds")
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected sample file: %v", err)
	}
}
