package task_test

import (
	"testing"

	"dubflow/internal/task"
)

func TestStepIndexFollowsPipelineOrder(t *testing.T) {
	steps := task.Steps()
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	for i, step := range steps {
		if got := task.StepIndex(step); got != i {
			t.Fatalf("StepIndex(%s) = %d, want %d", step, got, i)
		}
	}
	if got := task.StepIndex(task.Step("unknown")); got != -1 {
		t.Fatalf("StepIndex(unknown) = %d, want -1", got)
	}
	if got := task.StepIndex(""); got != -1 {
		t.Fatalf("StepIndex(empty) = %d, want -1", got)
	}
}

func TestAdvanceLastStepOnlyMovesForward(t *testing.T) {
	tsk := &task.Task{}

	tsk.AdvanceLastStep(task.StepSubtitles)
	if tsk.LastStep != task.StepSubtitles {
		t.Fatalf("last step = %s, want subtitles", tsk.LastStep)
	}

	tsk.AdvanceLastStep(task.StepParse)
	if tsk.LastStep != task.StepSubtitles {
		t.Fatalf("last step moved backward to %s", tsk.LastStep)
	}

	tsk.AdvanceLastStep(task.StepPublish)
	if tsk.LastStep != task.StepPublish {
		t.Fatalf("last step = %s, want publish", tsk.LastStep)
	}
}

func TestStepRecordForReturnsBackingRecord(t *testing.T) {
	tsk := &task.Task{}
	rec := tsk.StepRecordFor(task.StepDub)
	if rec == nil {
		t.Fatal("expected record for dub step")
	}
	rec.Key = "tenant/project/id/audio/audio_mm.mp3"
	if tsk.ArtifactKey(task.StepDub) != rec.Key {
		t.Fatalf("artifact key = %q", tsk.ArtifactKey(task.StepDub))
	}
	if tsk.StepRecordFor(task.Step("bogus")) != nil {
		t.Fatal("expected nil record for unknown step")
	}
}

func TestParsePipelineConfigDefaults(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		subtitlesMode string
		dubMode       string
	}{
		{"empty", "", task.SubtitlesModeWhisperGemini, task.DubModeAutoFallback},
		{"malformed", "{not json", task.SubtitlesModeWhisperGemini, task.DubModeAutoFallback},
		{"unknown values", `{"subtitles_mode":"chatgpt","dub_mode":"espeak"}`, task.SubtitlesModeWhisperGemini, task.DubModeAutoFallback},
		{"explicit", `{"subtitles_mode":"whisper-only","dub_mode":"lovo"}`, task.SubtitlesModeWhisperOnly, task.DubModeLovo},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := task.ParsePipelineConfig(tc.raw)
			if cfg.SubtitlesMode != tc.subtitlesMode {
				t.Fatalf("subtitles mode = %q, want %q", cfg.SubtitlesMode, tc.subtitlesMode)
			}
			if cfg.DubMode != tc.dubMode {
				t.Fatalf("dub mode = %q, want %q", cfg.DubMode, tc.dubMode)
			}
		})
	}
}

func TestPipelineConfigTranslate(t *testing.T) {
	if !(task.PipelineConfig{}).Translate() {
		t.Fatal("default config should translate")
	}
	cfg := task.PipelineConfig{SubtitlesMode: task.SubtitlesModeWhisperOnly}
	if cfg.Translate() {
		t.Fatal("whisper-only config should not translate")
	}
}
