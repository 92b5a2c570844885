package steps

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dubflow/internal/artifacts"
	"dubflow/internal/logging"
	"dubflow/internal/scenes"
	"dubflow/internal/services"
	"dubflow/internal/storage"
	"dubflow/internal/subtitle"
	"dubflow/internal/task"
	"dubflow/internal/workspace"
)

// skipDubPlaceholderSeconds is the silent stand-in length used when dubbing
// was skipped and the source duration is unknown.
const skipDubPlaceholderSeconds = 3.0

// Pack cuts the media into scene clips and assembles the CapCut pack. When
// SkipDub is set and no dub audio exists, a short silent placeholder lets
// packaging proceed.
type Pack struct {
	media     MediaToolkit
	store     storage.Service
	ws        *workspace.Workspace
	sceneOpts scenes.Options
	skipDub   bool
	logger    *slog.Logger
}

// NewPack constructs the pack step handler.
func NewPack(media MediaToolkit, store storage.Service, ws *workspace.Workspace, sceneOpts scenes.Options, skipDub bool, logger *slog.Logger) *Pack {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pack{media: media, store: store, ws: ws, sceneOpts: sceneOpts, skipDub: skipDub, logger: logger}
}

// Step reports the stage this handler implements.
func (p *Pack) Step() task.Step { return task.StepPack }

// Run executes the pack stage.
func (p *Pack) Run(ctx context.Context, t *task.Task) (Result, error) {
	if err := p.ws.EnsureTaskDirs(t.ID); err != nil {
		return Result{}, services.Wrap(services.ErrFatal, "pack", "prepare workspace", "", err)
	}

	rawPath, err := p.requireLocalArtifact(ctx, t, task.StepParse, artifacts.RawVideo, p.ws.RawPath(t.ID))
	if err != nil {
		return Result{}, err
	}

	srtKey := t.ArtifactKey(task.StepSubtitles)
	if srtKey == "" {
		return Result{}, services.Wrap(services.ErrPrerequisite, "pack", "locate subtitles",
			"subtitles stage has not produced a translated artifact", nil)
	}
	srtBody, err := readArtifact(ctx, p.store, srtKey)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPrerequisite, "pack", "read subtitles",
			"subtitle artifact "+srtKey+" is unavailable", err)
	}
	entries, err := subtitle.ParseSRT(srtBody)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPrerequisite, "pack", "parse subtitles", "", err)
	}

	dubPath, err := p.ensureDubAudio(ctx, t)
	if err != nil {
		return Result{}, err
	}

	sceneList, err := scenes.Segment(entries, p.sceneOpts)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "pack", "segment scenes", "", err)
	}

	if err := p.buildSceneDirs(ctx, t, rawPath, entries, sceneList); err != nil {
		return Result{}, err
	}

	scenesZipPath := filepath.Join(p.ws.PackDir(t.ID), "scenes.zip")
	if err := zipDirectory(p.ws.ScenesDir(t.ID), "scenes", scenesZipPath); err != nil {
		return Result{}, services.Wrap(services.ErrFatal, "pack", "archive scenes", "", err)
	}
	scenesKey := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.ScenesZip)
	if err := storage.UploadFile(ctx, p.store, scenesKey, scenesZipPath); err != nil {
		return Result{}, services.Wrap(services.ErrProvider, "pack", "upload scenes archive", "", err)
	}
	t.Scenes = task.StepRecord{State: task.StepStateDone, Key: scenesKey}

	packZipPath := filepath.Join(p.ws.PackDir(t.ID), "capcut_pack.zip")
	if err := p.buildPackZip(t, rawPath, dubPath, srtBody, entries, packZipPath); err != nil {
		return Result{}, err
	}

	hash, err := fileSHA256(packZipPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrFatal, "pack", "hash pack", "", err)
	}
	t.PackHash = hash

	packKey := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.PackZip)
	if err := storage.UploadFile(ctx, p.store, packKey, packZipPath); err != nil {
		return Result{}, services.Wrap(services.ErrProvider, "pack", "upload pack", "", err)
	}

	return Result{
		ArtifactKey: packKey,
		Metadata: map[string]string{
			"scenes":    strconv.Itoa(len(sceneList)),
			"pack_hash": hash[:12],
		},
	}, nil
}

// requireLocalArtifact finds a stage artifact on disk, restoring it from
// storage if the workspace was cleaned.
func (p *Pack) requireLocalArtifact(ctx context.Context, t *task.Task, step task.Step, artifact, localPath string) (string, error) {
	key := t.ArtifactKey(step)
	if key == "" {
		key = artifacts.Build(t.Tenant, t.Project, t.ID, artifact)
		exists, err := p.store.Exists(ctx, key)
		if err != nil || !exists {
			return "", services.Wrap(services.ErrPrerequisite, "pack", "locate "+artifact,
				string(step)+" stage has not produced its artifact", err)
		}
	}
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}
	if err := downloadTo(ctx, p.store, key, localPath); err != nil {
		return "", services.Wrap(services.ErrPrerequisite, "pack", "restore "+artifact,
			"artifact "+key+" is unavailable", err)
	}
	return localPath, nil
}

// ensureDubAudio returns the dub audio path, synthesizing a silent
// placeholder when dubbing was skipped.
func (p *Pack) ensureDubAudio(ctx context.Context, t *task.Task) (string, error) {
	dubPath := p.ws.DubPath(t.ID)
	if key := t.ArtifactKey(task.StepDub); key != "" {
		if _, err := os.Stat(dubPath); err == nil {
			return dubPath, nil
		}
		if err := downloadTo(ctx, p.store, key, dubPath); err != nil {
			return "", services.Wrap(services.ErrPrerequisite, "pack", "restore dub audio",
				"dub artifact "+key+" is unavailable", err)
		}
		return dubPath, nil
	}

	if !p.skipDub {
		return "", services.Wrap(services.ErrPrerequisite, "pack", "locate dub audio",
			"dub stage has not produced audio and skip_dub is off", nil)
	}

	duration := t.DurationSeconds
	if duration <= 0 {
		duration = skipDubPlaceholderSeconds
	}
	p.logger.InfoContext(ctx, "dub audio missing, writing silent placeholder",
		logging.String(logging.FieldTaskID, t.ID))
	if err := p.media.SilenceMP3(ctx, dubPath, duration); err != nil {
		return "", services.Wrap(services.ErrProvider, "pack", "synthesize placeholder audio", "", err)
	}
	return dubPath, nil
}

func (p *Pack) buildSceneDirs(ctx context.Context, t *task.Task, rawPath string, entries []subtitle.Entry, sceneList []scenes.Scene) error {
	for _, scene := range sceneList {
		dir := p.ws.SceneDir(t.ID, scene.SceneID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrFatal, "pack", "create scene dir", "", err)
		}

		videoPath := filepath.Join(dir, workspace.SceneVideoFile)
		if err := p.media.SliceVideo(ctx, rawPath, videoPath, scene.Start, scene.Duration()); err != nil {
			return services.Wrap(services.ErrProvider, "pack",
				"slice video for "+scene.SceneID, "", err)
		}

		audioPath := filepath.Join(dir, workspace.SceneAudioFile)
		if err := p.media.SliceAudio(ctx, rawPath, audioPath, scene.Start, scene.Duration()); err != nil {
			// Corrupt source audio must not abort the whole run.
			p.logger.WarnContext(ctx, "audio slice failed, substituting silence",
				logging.String(logging.FieldTaskID, t.ID),
				logging.String("scene_id", scene.SceneID),
				logging.Error(err))
			if silenceErr := p.media.Silence(ctx, audioPath, scene.Duration()); silenceErr != nil {
				return services.Wrap(services.ErrProvider, "pack",
					"silence fallback for "+scene.SceneID, "", silenceErr)
			}
		}

		clipped := scenes.ClipEntries(entries, scene)
		if err := os.WriteFile(filepath.Join(dir, workspace.SceneSubsFile),
			[]byte(subtitle.FormatSRT(clipped, true)), 0o644); err != nil {
			return services.Wrap(services.ErrFatal, "pack", "write scene subtitles", "", err)
		}
		if err := os.WriteFile(filepath.Join(dir, workspace.SceneTextFile),
			[]byte(subtitle.ToText(clipped, true)), 0o644); err != nil {
			return services.Wrap(services.ErrFatal, "pack", "write scene text", "", err)
		}

		sceneDoc, err := json.MarshalIndent(scene, "", "  ")
		if err != nil {
			return services.Wrap(services.ErrFatal, "pack", "encode scene metadata", "", err)
		}
		if err := os.WriteFile(filepath.Join(dir, workspace.SceneManifestFile), sceneDoc, 0o644); err != nil {
			return services.Wrap(services.ErrFatal, "pack", "write scene metadata", "", err)
		}
	}

	lang := t.TargetLang
	manifest := scenes.BuildManifest(t.ID, lang, sceneList)
	encoded, err := manifest.Encode()
	if err != nil {
		return services.Wrap(services.ErrFatal, "pack", "encode scenes manifest", "", err)
	}
	if err := os.WriteFile(filepath.Join(p.ws.ScenesDir(t.ID), "scenes.json"), encoded, 0o644); err != nil {
		return services.Wrap(services.ErrFatal, "pack", "write scenes manifest", "", err)
	}
	if err := os.WriteFile(filepath.Join(p.ws.ScenesDir(t.ID), "README.md"),
		[]byte(scenesReadme(sceneList)), 0o644); err != nil {
		return services.Wrap(services.ErrFatal, "pack", "write scenes readme", "", err)
	}
	return nil
}

func (p *Pack) buildPackZip(t *task.Task, rawPath, dubPath, srtBody string, entries []subtitle.Entry, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return services.Wrap(services.ErrFatal, "pack", "create pack archive", "", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	files := []struct {
		name string
		path string
		body string
	}{
		{name: "video.mp4", path: rawPath},
		{name: "audio_mm.mp3", path: dubPath},
		{name: "subtitles_mm.srt", body: srtBody},
		{name: "subtitles_mm.txt", body: subtitle.ToText(entries, true)},
		{name: "README.md", body: packReadme(t)},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			return services.Wrap(services.ErrFatal, "pack", "write pack entry "+f.name, "", err)
		}
		if f.path != "" {
			src, err := os.Open(f.path)
			if err != nil {
				return services.Wrap(services.ErrFatal, "pack", "open "+f.path, "", err)
			}
			_, copyErr := io.Copy(w, src)
			src.Close()
			if copyErr != nil {
				return services.Wrap(services.ErrFatal, "pack", "copy "+f.name, "", copyErr)
			}
		} else {
			if _, err := io.WriteString(w, f.body); err != nil {
				return services.Wrap(services.ErrFatal, "pack", "write "+f.name, "", err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return services.Wrap(services.ErrFatal, "pack", "finalize pack archive", "", err)
	}
	return nil
}

func scenesReadme(list []scenes.Scene) string {
	var b strings.Builder
	b.WriteString("# Scenes\n\n")
	b.WriteString("| scene | start | end | duration |\n")
	b.WriteString("|-------|-------|-----|----------|\n")
	for _, scene := range list {
		fmt.Fprintf(&b, "| %s | %s | %s | %.1fs |\n",
			scene.SceneID,
			subtitle.FormatTimestamp(scene.Start),
			subtitle.FormatTimestamp(scene.End),
			scene.Duration())
	}
	return b.String()
}

func packReadme(t *task.Task) string {
	var b strings.Builder
	b.WriteString("# CapCut Pack\n\n")
	if t.Title != "" {
		fmt.Fprintf(&b, "Source: %s\n\n", t.Title)
	}
	b.WriteString("Contents:\n\n")
	b.WriteString("- `video.mp4` - source video\n")
	b.WriteString("- `audio_mm.mp3` - dubbed audio track\n")
	b.WriteString("- `subtitles_mm.srt` - translated subtitles\n")
	b.WriteString("- `subtitles_mm.txt` - plain-text transcript\n\n")
	b.WriteString("Import the video, replace its audio with `audio_mm.mp3`, and load the SRT as a caption track.\n")
	return b.String()
}

// zipDirectory archives dir under prefix inside a new zip file at dst.
func zipDirectory(dir, prefix, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(filepath.Join(prefix, rel)))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// fileSHA256 hashes a file's content.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
