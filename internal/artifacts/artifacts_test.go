package artifacts_test

import (
	"testing"

	"dubflow/internal/artifacts"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		tenant   string
		project  string
		taskID   string
		artifact string
		want     string
	}{
		{"full scope", "acme", "launch", "t1", artifacts.RawVideo, "acme/launch/t1/raw/raw.mp4"},
		{"default tenant", "", "launch", "t1", artifacts.OriginSRT, "default/launch/t1/subs/origin.srt"},
		{"default both", "", "", "t1", artifacts.DubAudio, "default/default/t1/audio/audio_mm.mp3"},
		{"trims artifact slashes", "acme", "launch", "t1", "/pack/capcut_pack.zip/", "acme/launch/t1/pack/capcut_pack.zip"},
		{"collapses doubles", "acme/", "/launch", "t1", "subs//mm.srt", "acme/launch/t1/subs/mm.srt"},
		{"whitespace scope", "  ", "launch", "t1", artifacts.ScenesZip, "default/launch/t1/scenes/scenes.zip"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := artifacts.Build(tc.tenant, tc.project, tc.taskID, tc.artifact)
			if got != tc.want {
				t.Fatalf("Build = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildIsDeterministicAndDistinctPerTask(t *testing.T) {
	a := artifacts.Build("acme", "launch", "task-a", artifacts.PackZip)
	b := artifacts.Build("acme", "launch", "task-b", artifacts.PackZip)
	if a == b {
		t.Fatalf("keys collide across tasks: %q", a)
	}
	if a != artifacts.Build("acme", "launch", "task-a", artifacts.PackZip) {
		t.Fatal("Build is not deterministic")
	}
}

func TestParseRoundTrip(t *testing.T) {
	key := artifacts.Build("acme", "launch", "t1", artifacts.TranslatedSRT)
	parsed, err := artifacts.Parse(key)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Tenant != "acme" || parsed.Project != "launch" || parsed.TaskID != "t1" {
		t.Fatalf("parsed = %+v", parsed)
	}
	if parsed.Artifact != artifacts.TranslatedSRT {
		t.Fatalf("artifact = %q", parsed.Artifact)
	}
}

func TestParseRejectsMalformedKeys(t *testing.T) {
	for _, key := range []string{"", "a/b", "a/b/c", "a//c/d"} {
		if _, err := artifacts.Parse(key); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", key)
		}
	}
}

func TestPublishedPackTruncatesHash(t *testing.T) {
	got := artifacts.PublishedPack("t1", "abcdef0123456789abcdef")
	want := "published/t1/capcut_pack_abcdef012345.zip"
	if got != want {
		t.Fatalf("PublishedPack = %q, want %q", got, want)
	}

	short := artifacts.PublishedPack("t1", "ff00")
	if short != "published/t1/capcut_pack_ff00.zip" {
		t.Fatalf("PublishedPack short hash = %q", short)
	}
}
