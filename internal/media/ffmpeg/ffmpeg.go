// Package ffmpeg wraps the ffmpeg and ffprobe binaries for the slicing,
// extraction, and conversion work the pipeline needs.
package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Runner executes ffmpeg operations using a configured binary.
type Runner struct {
	binary string
}

// NewRunner returns a runner for the given ffmpeg binary. An empty binary
// falls back to "ffmpeg" on PATH.
func NewRunner(binary string) *Runner {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Runner{binary: binary}
}

func (r *Runner) run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	cmd := commandContext(ctx, r.binary, full...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", r.binary, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

// SliceVideo cuts [start, start+duration) from src into a muted video-only
// clip.
func (r *Runner) SliceVideo(ctx context.Context, src, dst string, start, duration float64) error {
	return r.run(ctx,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", src,
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast",
		dst,
	)
}

// SliceAudio cuts [start, start+duration) of the audio track from src into
// a wav clip. Callers fall back to Silence when the source audio is
// unusable.
func (r *Runner) SliceAudio(ctx context.Context, src, dst string, start, duration float64) error {
	return r.run(ctx,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		dst,
	)
}

// Silence writes a silent wav clip of the given duration.
func (r *Runner) Silence(ctx context.Context, dst string, duration float64) error {
	if duration <= 0 {
		return errors.New("silence duration must be positive")
	}
	return r.run(ctx,
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", formatSeconds(duration),
		"-acodec", "pcm_s16le",
		dst,
	)
}

// SilenceMP3 writes a silent mp3 of the given duration, used as the dub
// placeholder when dubbing is skipped.
func (r *Runner) SilenceMP3(ctx context.Context, dst string, duration float64) error {
	if duration <= 0 {
		return errors.New("silence duration must be positive")
	}
	return r.run(ctx,
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", formatSeconds(duration),
		"-codec:a", "libmp3lame",
		"-b:a", "128k",
		dst,
	)
}

// ExtractAudio pulls the audio track from src as 16kHz mono wav, the input
// format the transcriber expects.
func (r *Runner) ExtractAudio(ctx context.Context, src, dst string) error {
	return r.run(ctx,
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dst,
	)
}

// ConvertMP3 transcodes src audio into mp3.
func (r *Runner) ConvertMP3(ctx context.Context, src, dst string) error {
	return r.run(ctx,
		"-i", src,
		"-vn",
		"-codec:a", "libmp3lame",
		"-b:a", "192k",
		dst,
	)
}

// ProbeDuration reports the container duration of a media file in seconds
// using ffprobe.
func (r *Runner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	probe := "ffprobe"
	if strings.HasSuffix(r.binary, "ffmpeg") {
		probe = strings.TrimSuffix(r.binary, "ffmpeg") + "ffprobe"
	}
	cmd := commandContext(ctx, probe, //nolint:gosec
		"-v", "error", "-hide_banner", "-show_format", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(output)))
	}

	var result struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(result.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration %q: %w", result.Format.Duration, err)
	}
	return seconds, nil
}

func formatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
