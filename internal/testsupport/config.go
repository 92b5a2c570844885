package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dubflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Storage.Provider = "local"
	cfgVal.Gemini.APIKey = "test"
	cfgVal.Resolver.APIKey = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithScope overrides the tenant/project scoping on the test config.
func WithScope(tenant, project string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scope.Tenant = tenant
		b.cfg.Scope.Project = project
	}
}

// WithStepDisabled switches off a single pipeline step on the test config.
func WithStepDisabled(step string) ConfigOption {
	return func(b *configBuilder) {
		switch step {
		case "parse":
			b.cfg.Steps.Parse = false
		case "subtitles":
			b.cfg.Steps.Subtitles = false
		case "dub":
			b.cfg.Steps.Dub = false
		case "pack":
			b.cfg.Steps.Pack = false
		case "publish":
			b.cfg.Steps.Publish = false
		default:
			b.t.Fatalf("unknown step %q", step)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default dubflow external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "whisper-cli", "edge-tts"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}
