package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dubflow/internal/services"
)

var commandContext = exec.CommandContext

// Edge shells out to the edge-tts binary.
type Edge struct {
	binary string
	voice  string
}

// NewEdge constructs an edge-tts synthesizer. An empty binary falls back to
// "edge-tts" on PATH.
func NewEdge(binary, voice string) *Edge {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "edge-tts"
	}
	return &Edge{binary: binary, voice: strings.TrimSpace(voice)}
}

// Name identifies the provider.
func (e *Edge) Name() string { return "edge" }

// Synthesize renders text to outPath as mp3.
func (e *Edge) Synthesize(ctx context.Context, text, outPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "", "edge-tts", "empty text", nil)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create tts dir: %w", err)
	}

	args := []string{"--text", text, "--write-media", outPath}
	if e.voice != "" {
		args = append(args, "--voice", e.voice)
	}

	cmd := commandContext(ctx, e.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return services.Wrap(services.ErrProvider, "", "edge-tts",
			fmt.Sprintf("%s failed: %s", e.binary, strings.TrimSpace(string(output))), err)
	}
	if info, statErr := os.Stat(outPath); statErr != nil || info.Size() == 0 {
		return services.Wrap(services.ErrProvider, "", "edge-tts",
			fmt.Sprintf("no audio written to %s", outPath), nil)
	}
	return nil
}
