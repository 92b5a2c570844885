package scenes

import (
	"encoding/json"
	"fmt"
	"path"
)

// manifestVersion identifies the scenes.json layout.
const manifestVersion = "1.8"

// ManifestScene is one scene's row in the scenes.json index.
type ManifestScene struct {
	SceneID  string  `json:"scene_id"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Dir      string  `json:"dir"`
}

// Manifest indexes every scene clip produced for a task.
type Manifest struct {
	Version  string          `json:"version"`
	TaskID   string          `json:"task_id"`
	Language string          `json:"language"`
	Scenes   []ManifestScene `json:"scenes"`
}

// BuildManifest assembles the scenes.json document for a segmented task.
func BuildManifest(taskID, language string, list []Scene) Manifest {
	manifest := Manifest{
		Version:  manifestVersion,
		TaskID:   taskID,
		Language: language,
		Scenes:   make([]ManifestScene, 0, len(list)),
	}
	for _, scene := range list {
		manifest.Scenes = append(manifest.Scenes, ManifestScene{
			SceneID:  scene.SceneID,
			Start:    scene.Start,
			End:      scene.End,
			Duration: scene.Duration(),
			Dir:      path.Join("scenes", scene.SceneID),
		})
	}
	return manifest
}

// Encode renders the manifest as indented JSON.
func (m Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode scenes manifest: %w", err)
	}
	return data, nil
}
