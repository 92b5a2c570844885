// Package workspace lays out the per-task scratch directories the pipeline
// steps work in before artifacts are uploaded.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Per-scene file names inside a scene directory.
const (
	SceneVideoFile    = "video.mp4"
	SceneAudioFile    = "audio.wav"
	SceneSubsFile     = "subs.srt"
	SceneTextFile     = "subs.txt"
	SceneManifestFile = "scene.json"
)

// Workspace resolves task-relative paths under a root directory.
type Workspace struct {
	root string
}

// New constructs a workspace rooted at dir.
func New(dir string) (*Workspace, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("workspace root is empty")
	}
	return &Workspace{root: dir}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// TaskDir is the scratch directory for one task.
func (w *Workspace) TaskDir(taskID string) string {
	return filepath.Join(w.root, "tasks", taskID)
}

// RawPath is the downloaded source media location.
func (w *Workspace) RawPath(taskID string) string {
	return filepath.Join(w.TaskDir(taskID), "raw.mp4")
}

// AudioPath is the extracted transcription audio location.
func (w *Workspace) AudioPath(taskID string) string {
	return filepath.Join(w.TaskDir(taskID), "audio.wav")
}

// SubsDir holds subtitle outputs for a task.
func (w *Workspace) SubsDir(taskID string) string {
	return filepath.Join(w.TaskDir(taskID), "subs")
}

// DubPath is the synthesized dub audio location.
func (w *Workspace) DubPath(taskID string) string {
	return filepath.Join(w.TaskDir(taskID), "audio_mm.mp3")
}

// ScenesDir holds the per-scene clip directories.
func (w *Workspace) ScenesDir(taskID string) string {
	return filepath.Join(w.TaskDir(taskID), "scenes")
}

// SceneDir is one scene's clip directory.
func (w *Workspace) SceneDir(taskID, sceneID string) string {
	return filepath.Join(w.ScenesDir(taskID), sceneID)
}

// PackDir holds pack build outputs for a task.
func (w *Workspace) PackDir(taskID string) string {
	return filepath.Join(w.TaskDir(taskID), "pack")
}

// EnsureTaskDirs creates the task's directory tree.
func (w *Workspace) EnsureTaskDirs(taskID string) error {
	for _, dir := range []string{
		w.TaskDir(taskID),
		w.SubsDir(taskID),
		w.ScenesDir(taskID),
		w.PackDir(taskID),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Cleanup removes a task's scratch directory.
func (w *Workspace) Cleanup(taskID string) error {
	if strings.TrimSpace(taskID) == "" {
		return errors.New("task id is empty")
	}
	return os.RemoveAll(w.TaskDir(taskID))
}
