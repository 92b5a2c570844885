package task

import "encoding/json"

// Per-task pipeline tuning. Unknown or empty values fall back to the
// defaults without surfacing an error, so a stale or hand-edited config
// never blocks a task.
const (
	SubtitlesModeWhisperOnly   = "whisper-only"
	SubtitlesModeWhisperGemini = "whisper+gemini"

	DubModeEdge         = "edge"
	DubModeLovo         = "lovo"
	DubModeAutoFallback = "auto-fallback"

	DefaultSubtitlesMode = SubtitlesModeWhisperGemini
	DefaultDubMode       = DubModeAutoFallback
)

// PipelineConfig selects how the subtitles and dub steps do their work.
type PipelineConfig struct {
	SubtitlesMode string `json:"subtitles_mode"`
	DubMode       string `json:"dub_mode"`
}

// Normalized returns a copy with every field coerced to a known value.
func (c PipelineConfig) Normalized() PipelineConfig {
	out := c
	switch out.SubtitlesMode {
	case SubtitlesModeWhisperOnly, SubtitlesModeWhisperGemini:
	default:
		out.SubtitlesMode = DefaultSubtitlesMode
	}
	switch out.DubMode {
	case DubModeEdge, DubModeLovo, DubModeAutoFallback:
	default:
		out.DubMode = DefaultDubMode
	}
	return out
}

// Translate reports whether the subtitles step should attempt translation.
func (c PipelineConfig) Translate() bool {
	return c.Normalized().SubtitlesMode == SubtitlesModeWhisperGemini
}

// ParsePipelineConfig decodes a stored pipeline config document. Malformed
// JSON and unknown mode values both normalize to the defaults.
func ParsePipelineConfig(raw string) PipelineConfig {
	var cfg PipelineConfig
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &cfg)
	}
	return cfg.Normalized()
}

func (c PipelineConfig) marshal() (string, error) {
	data, err := json.Marshal(c.Normalized())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
