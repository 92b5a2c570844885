// Package whisper runs a local whisper.cpp-style binary to transcribe audio
// into subtitle entries.
package whisper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dubflow/internal/services"
	"dubflow/internal/subtitle"
)

var commandContext = exec.CommandContext

// Transcriber shells out to the whisper binary and parses its SRT output.
type Transcriber struct {
	binary string
	model  string
}

// NewTranscriber constructs a transcriber. An empty binary falls back to
// "whisper-cli" on PATH.
func NewTranscriber(binary, model string) *Transcriber {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "whisper-cli"
	}
	return &Transcriber{binary: binary, model: strings.TrimSpace(model)}
}

// Transcribe runs the binary against audioPath, asking it to emit SRT next
// to outPrefix, and returns the parsed entries along with the SRT path.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, outPrefix, language string) ([]subtitle.Entry, string, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, "", services.Wrap(services.ErrPrerequisite, "", "whisper",
			fmt.Sprintf("audio file %s not found", audioPath), err)
	}
	if err := os.MkdirAll(filepath.Dir(outPrefix), 0o755); err != nil {
		return nil, "", fmt.Errorf("create transcription dir: %w", err)
	}

	args := []string{"-f", audioPath, "-osrt", "-of", outPrefix}
	if t.model != "" {
		args = append(args, "-m", t.model)
	}
	if language != "" {
		args = append(args, "-l", language)
	}

	cmd := commandContext(ctx, t.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, "", services.Wrap(services.ErrProvider, "", "whisper",
			fmt.Sprintf("%s failed: %s", t.binary, strings.TrimSpace(string(output))), err)
	}

	srtPath := outPrefix + ".srt"
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return nil, "", services.Wrap(services.ErrProvider, "", "whisper",
			fmt.Sprintf("transcription output %s missing", srtPath), err)
	}

	entries, err := subtitle.ParseSRT(string(data))
	if err != nil {
		return nil, "", services.Wrap(services.ErrProvider, "", "whisper",
			"transcription produced no usable cues", err)
	}
	return entries, srtPath, nil
}
