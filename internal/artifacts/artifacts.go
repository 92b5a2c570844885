// Package artifacts builds and inspects object-storage keys for task outputs.
//
// Keys follow the fixed layout "{tenant}/{project}/{task_id}/{artifact}".
// Tenant and project fall back to "default" when unset, so a key is always
// fully qualified and collision-free across tasks.
package artifacts

import (
	"fmt"
	"strings"
)

// DefaultScope is substituted for an empty tenant or project segment.
const DefaultScope = "default"

// Canonical artifact paths within a task's key space.
const (
	RawVideo       = "raw/raw.mp4"
	OriginSRT      = "subs/origin.srt"
	TranslatedSRT  = "subs/mm.srt"
	TranslatedText = "subs/mm.txt"
	SubtitlesJSON  = "subs/subtitles.json"
	DubAudio       = "audio/audio_mm.mp3"
	PackZip        = "pack/capcut_pack.zip"
	ScenesZip      = "scenes/scenes.zip"
)

// Build assembles the storage key for one artifact of a task. Empty tenant
// or project segments fall back to DefaultScope, leading/trailing slashes on
// the artifact path are trimmed, and interior empty segments are collapsed.
func Build(tenant, project, taskID, artifact string) string {
	key := strings.Join([]string{
		scopeSegment(tenant),
		scopeSegment(project),
		strings.TrimSpace(taskID),
		strings.Trim(strings.TrimSpace(artifact), "/"),
	}, "/")
	return collapseSlashes(key)
}

// PublishedPack returns the key of a published pack for the given content
// hash. The hash is truncated to 12 characters so republished content with
// the same bytes lands on the same key.
func PublishedPack(taskID, contentHash string) string {
	hash := contentHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return collapseSlashes(fmt.Sprintf("published/%s/capcut_pack_%s.zip", strings.TrimSpace(taskID), hash))
}

// Key is the parsed form of a storage key, used for diagnostics only.
type Key struct {
	Tenant   string
	Project  string
	TaskID   string
	Artifact string
}

// Parse splits a storage key back into its segments. It is the inverse of
// Build for well-formed keys; malformed keys yield an error.
func Parse(key string) (Key, error) {
	parts := strings.SplitN(strings.Trim(key, "/"), "/", 4)
	if len(parts) < 4 {
		return Key{}, fmt.Errorf("artifact key %q has %d segments, want at least 4", key, len(parts))
	}
	for i, part := range parts {
		if part == "" {
			return Key{}, fmt.Errorf("artifact key %q has empty segment at position %d", key, i)
		}
	}
	return Key{
		Tenant:   parts[0],
		Project:  parts[1],
		TaskID:   parts[2],
		Artifact: parts[3],
	}, nil
}

func scopeSegment(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" {
		return DefaultScope
	}
	return value
}

func collapseSlashes(key string) string {
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}
