package whisper

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"dubflow/internal/services"
)

const stubSRT = `1
00:00:00,000 --> 00:00:02,000
你好

2
00:00:02,000 --> 00:00:04,000
世界
`

func TestTranscribeParsesOutput(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(audio, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	prefix := filepath.Join(dir, "out", "origin")

	original := commandContext
	defer func() { commandContext = original }()
	var gotArgs []string
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotArgs = append([]string{name}, args...)
		// The binary writes <prefix>.srt on success.
		if err := os.WriteFile(prefix+".srt", []byte(stubSRT), 0o644); err != nil {
			t.Fatalf("write stub srt: %v", err)
		}
		return exec.CommandContext(ctx, "true")
	}

	tr := NewTranscriber("whisper-cli", "models/ggml-base.bin")
	entries, srtPath, err := tr.Transcribe(context.Background(), audio, prefix, "zh")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if srtPath != prefix+".srt" {
		t.Fatalf("srt path = %q", srtPath)
	}
	joined := ""
	for _, a := range gotArgs {
		joined += a + " "
	}
	for _, want := range []string{"whisper-cli", "-osrt", "-m models/ggml-base.bin", "-l zh"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestTranscribeMissingAudio(t *testing.T) {
	tr := NewTranscriber("", "")
	_, _, err := tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), "out", "")
	if !errors.Is(err, services.ErrPrerequisite) {
		t.Fatalf("error = %v, want prerequisite", err)
	}
}

func TestTranscribeBinaryFailure(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(audio, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	original := commandContext
	defer func() { commandContext = original }()
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}

	tr := NewTranscriber("", "")
	_, _, err := tr.Transcribe(context.Background(), audio, filepath.Join(dir, "origin"), "")
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("error = %v, want provider", err)
	}
}

func TestTranscribeMissingOutput(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(audio, []byte("wav"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	original := commandContext
	defer func() { commandContext = original }()
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	}

	tr := NewTranscriber("", "")
	_, _, err := tr.Transcribe(context.Background(), audio, filepath.Join(dir, "origin"), "")
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("error = %v, want provider", err)
	}
}
