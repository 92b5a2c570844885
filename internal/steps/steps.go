// Package steps implements the pipeline's step handlers. Each handler runs
// one stage against a task snapshot and reports an artifact key on success;
// failures are typed with the sentinels in internal/services so the runner
// can classify them.
package steps

import (
	"context"

	"dubflow/internal/services/xiongmao"
	"dubflow/internal/subtitle"
	"dubflow/internal/task"
)

// Result is a successful step outcome. ArtifactKey is the storage key the
// step produced; Metadata carries step-specific diagnostics for logging.
type Result struct {
	ArtifactKey string
	Metadata    map[string]string
}

// Handler runs one pipeline stage. Run may mutate the task snapshot to
// record auxiliary fields (raw path, duration, scenes key, publish URL); the
// runner persists the snapshot after each stage.
type Handler interface {
	Step() task.Step
	Run(ctx context.Context, t *task.Task) (Result, error)
}

// Resolver turns a share link into a direct media URL.
type Resolver interface {
	Resolve(ctx context.Context, shareURL string) (xiongmao.Media, error)
}

// Fetcher downloads a URL to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dst string) error
}

// Transcriber produces subtitle entries from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, outPrefix, language string) ([]subtitle.Entry, string, error)
}

// Translator renders subtitle entries into a target language.
type Translator interface {
	Translate(ctx context.Context, entries []subtitle.Entry, targetLang string) ([]subtitle.Entry, error)
}

// MediaToolkit is the subset of ffmpeg operations the steps need.
type MediaToolkit interface {
	SliceVideo(ctx context.Context, src, dst string, start, duration float64) error
	SliceAudio(ctx context.Context, src, dst string, start, duration float64) error
	Silence(ctx context.Context, dst string, duration float64) error
	SilenceMP3(ctx context.Context, dst string, duration float64) error
	ExtractAudio(ctx context.Context, src, dst string) error
	ConvertMP3(ctx context.Context, src, dst string) error
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Synthesizer renders text to an audio file.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, outPath string) error
}
