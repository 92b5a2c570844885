// Package scenes partitions subtitle timelines into independently editable
// clips and re-times subtitle entries into each clip's local window.
package scenes

import (
	"fmt"

	"dubflow/internal/subtitle"
)

// Options bound how long and how dense a single scene may be.
type Options struct {
	MinSceneSeconds float64
	MaxSceneSeconds float64
	MinLines        int
	MaxLines        int
}

// DefaultOptions returns the standard cut thresholds.
func DefaultOptions() Options {
	return Options{
		MinSceneSeconds: 6.0,
		MaxSceneSeconds: 15.0,
		MinLines:        3,
		MaxLines:        5,
	}
}

func (o Options) normalized() Options {
	def := DefaultOptions()
	if o.MinSceneSeconds <= 0 {
		o.MinSceneSeconds = def.MinSceneSeconds
	}
	if o.MaxSceneSeconds <= o.MinSceneSeconds {
		o.MaxSceneSeconds = def.MaxSceneSeconds
	}
	if o.MinLines <= 0 {
		o.MinLines = def.MinLines
	}
	if o.MaxLines < o.MinLines {
		o.MaxLines = def.MaxLines
	}
	return o
}

// Scene is one contiguous window of the source timeline.
type Scene struct {
	SceneID string  `json:"scene_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Title   string  `json:"title,omitempty"`
}

// Duration reports the scene length in seconds.
func (s Scene) Duration() float64 {
	return s.End - s.Start
}

// SceneID formats the 1-based scene number as a stable identifier.
func SceneID(number int) string {
	return fmt.Sprintf("scene_%03d", number)
}

// Segment partitions the entries into scenes in a single forward pass.
//
// A scene closes when its accumulated duration reaches MaxSceneSeconds, when
// it holds MaxLines entries, or when it holds at least MinLines entries over
// at least MinSceneSeconds and taking the next entry would overshoot
// MaxSceneSeconds. Trailing entries that never satisfied a cut condition are
// merged into the last scene, and a transcript too short to cut at all
// becomes exactly one scene. The returned scenes partition
// [first.Start, last.End] with no gaps and no overlaps.
func Segment(entries []subtitle.Entry, opts Options) ([]Scene, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no subtitle entries to segment")
	}
	opts = opts.normalized()

	var scenes []Scene
	openStart := entries[0].Start
	lines := 0

	for i, entry := range entries {
		end := entry.End
		duration := end - openStart
		lines++

		cut := false
		switch {
		case duration >= opts.MaxSceneSeconds:
			cut = true
		case lines >= opts.MaxLines:
			cut = true
		case lines >= opts.MinLines && duration >= opts.MinSceneSeconds:
			last := i == len(entries)-1
			if last || entries[i+1].End-openStart > opts.MaxSceneSeconds {
				cut = true
			}
		}

		if cut {
			scenes = append(scenes, Scene{Start: openStart, End: end})
			lines = 0
			if i < len(entries)-1 {
				openStart = entries[i+1].Start
			}
		}
	}

	if lines > 0 {
		// Entries left in the open scene never hit a cut condition.
		tail := entries[len(entries)-1].End
		if len(scenes) == 0 {
			scenes = append(scenes, Scene{Start: entries[0].Start, End: tail})
		} else {
			scenes[len(scenes)-1].End = tail
		}
	}

	// Snap boundaries so consecutive windows share an edge and the union
	// covers the full timeline exactly.
	scenes[0].Start = entries[0].Start
	for i := 1; i < len(scenes); i++ {
		scenes[i].Start = scenes[i-1].End
	}
	scenes[len(scenes)-1].End = entries[len(entries)-1].End

	out := scenes[:0]
	for _, scene := range scenes {
		if scene.End <= scene.Start {
			continue
		}
		scene.SceneID = SceneID(len(out) + 1)
		out = append(out, scene)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("segmentation produced no scenes with positive duration")
	}
	return out, nil
}

// ClipEntries re-times the entries that overlap the scene's window so their
// start/end are relative to the scene start. Entries fully outside the
// window are dropped; partial overlaps are clamped to the window first.
func ClipEntries(entries []subtitle.Entry, scene Scene) []subtitle.Entry {
	var out []subtitle.Entry
	for _, entry := range entries {
		if entry.End <= scene.Start || entry.Start >= scene.End {
			continue
		}
		start := entry.Start
		if start < scene.Start {
			start = scene.Start
		}
		end := entry.End
		if end > scene.End {
			end = scene.End
		}

		clipped := entry
		clipped.Index = len(out) + 1
		clipped.Start = start - scene.Start
		clipped.End = end - scene.Start
		clipped.SceneID = scene.SceneID
		out = append(out, clipped)
	}
	return out
}
