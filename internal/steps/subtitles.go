package steps

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dubflow/internal/artifacts"
	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/storage"
	"dubflow/internal/subtitle"
	"dubflow/internal/task"
	"dubflow/internal/workspace"
)

// Subtitles transcribes the raw media and attempts translation. Translation
// failure degrades gracefully: the stage still succeeds with the source text
// standing in for the translation.
type Subtitles struct {
	media       MediaToolkit
	transcriber Transcriber
	translator  Translator
	store       storage.Service
	ws          *workspace.Workspace
	targetLang  string
	logger      *slog.Logger
}

// NewSubtitles constructs the subtitles step handler.
func NewSubtitles(media MediaToolkit, transcriber Transcriber, translator Translator, store storage.Service, ws *workspace.Workspace, targetLang string, logger *slog.Logger) *Subtitles {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Subtitles{
		media:       media,
		transcriber: transcriber,
		translator:  translator,
		store:       store,
		ws:          ws,
		targetLang:  targetLang,
		logger:      logger,
	}
}

// Step reports the stage this handler implements.
func (s *Subtitles) Step() task.Step { return task.StepSubtitles }

// Run executes the subtitles stage.
func (s *Subtitles) Run(ctx context.Context, t *task.Task) (Result, error) {
	rawPath, err := s.ensureRawMedia(ctx, t)
	if err != nil {
		return Result{}, err
	}

	if err := s.ws.EnsureTaskDirs(t.ID); err != nil {
		return Result{}, services.Wrap(services.ErrFatal, "subtitles", "prepare workspace", "", err)
	}

	audioPath := s.ws.AudioPath(t.ID)
	if err := s.media.ExtractAudio(ctx, rawPath, audioPath); err != nil {
		return Result{}, services.Wrap(services.ErrProvider, "subtitles", "extract audio", "", err)
	}

	prefix := filepath.Join(s.ws.SubsDir(t.ID), "origin")
	entries, srtPath, err := s.transcriber.Transcribe(ctx, audioPath, prefix, t.ContentLang)
	if err != nil {
		return Result{}, err
	}

	originKey := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.OriginSRT)
	if err := storage.UploadFile(ctx, s.store, originKey, srtPath); err != nil {
		return Result{}, services.Wrap(services.ErrProvider, "subtitles", "upload origin srt", "", err)
	}

	lang := t.TargetLang
	if lang == "" {
		lang = s.targetLang
	}

	translated := false
	if t.PipelineConfig.Translate() && s.translator != nil {
		out, translateErr := s.translator.Translate(ctx, entries, lang)
		if translateErr != nil {
			// A usable package with untranslated captions beats no package.
			s.logger.WarnContext(ctx, "translation failed, continuing with origin text",
				logging.String(logging.FieldTaskID, t.ID),
				logging.Error(translateErr))
		} else {
			entries = out
			translated = true
		}
	}

	key, err := s.uploadTranslatedArtifacts(ctx, t, lang, entries)
	if err != nil {
		return Result{}, err
	}

	return Result{
		ArtifactKey: key,
		Metadata: map[string]string{
			"entries":    strconv.Itoa(len(entries)),
			"translated": strconv.FormatBool(translated),
		},
	}, nil
}

// ensureRawMedia locates the parse stage's media, restoring it from storage
// when the workspace was cleaned between runs.
func (s *Subtitles) ensureRawMedia(ctx context.Context, t *task.Task) (string, error) {
	rawKey := t.ArtifactKey(task.StepParse)
	if rawKey == "" {
		return "", services.Wrap(services.ErrPrerequisite, "subtitles", "locate raw media",
			"parse stage has not produced a media artifact", nil)
	}

	rawPath := t.RawPath
	if rawPath == "" {
		rawPath = s.ws.RawPath(t.ID)
	}
	if _, err := os.Stat(rawPath); err == nil {
		return rawPath, nil
	}

	if err := s.ws.EnsureTaskDirs(t.ID); err != nil {
		return "", services.Wrap(services.ErrFatal, "subtitles", "prepare workspace", "", err)
	}
	if err := downloadTo(ctx, s.store, rawKey, rawPath); err != nil {
		return "", services.Wrap(services.ErrPrerequisite, "subtitles", "restore raw media",
			"raw media artifact "+rawKey+" is unavailable", err)
	}
	t.RawPath = rawPath
	return rawPath, nil
}

// subtitlesDocument is the structured sidecar later stages read instead of
// re-parsing SRT text.
type subtitlesDocument struct {
	TaskID   string           `json:"task_id"`
	Language string           `json:"language"`
	Segments []subtitle.Entry `json:"segments"`
}

func (s *Subtitles) uploadTranslatedArtifacts(ctx context.Context, t *task.Task, lang string, entries []subtitle.Entry) (string, error) {
	subsDir := s.ws.SubsDir(t.ID)

	srtBody := subtitle.FormatSRT(entries, true)
	srtPath := filepath.Join(subsDir, "mm.srt")
	if err := os.WriteFile(srtPath, []byte(srtBody), 0o644); err != nil {
		return "", services.Wrap(services.ErrFatal, "subtitles", "write translated srt", "", err)
	}

	txtBody := subtitle.ToText(entries, true)
	txtPath := filepath.Join(subsDir, "mm.txt")
	if err := os.WriteFile(txtPath, []byte(txtBody), 0o644); err != nil {
		return "", services.Wrap(services.ErrFatal, "subtitles", "write translated text", "", err)
	}

	key := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.TranslatedSRT)
	if err := storage.UploadFile(ctx, s.store, key, srtPath); err != nil {
		return "", services.Wrap(services.ErrProvider, "subtitles", "upload translated srt", "", err)
	}
	txtKey := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.TranslatedText)
	if err := storage.UploadFile(ctx, s.store, txtKey, txtPath); err != nil {
		return "", services.Wrap(services.ErrProvider, "subtitles", "upload translated text", "", err)
	}

	doc, err := json.MarshalIndent(subtitlesDocument{TaskID: t.ID, Language: lang, Segments: entries}, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrFatal, "subtitles", "encode subtitles document", "", err)
	}
	jsonPath := filepath.Join(subsDir, "subtitles.json")
	if err := os.WriteFile(jsonPath, doc, 0o644); err != nil {
		return "", services.Wrap(services.ErrFatal, "subtitles", "write subtitles document", "", err)
	}
	jsonKey := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.SubtitlesJSON)
	if err := storage.UploadFile(ctx, s.store, jsonKey, jsonPath); err != nil {
		return "", services.Wrap(services.ErrProvider, "subtitles", "upload subtitles document", "", err)
	}

	return key, nil
}

// downloadTo copies a storage object to a local file.
func downloadTo(ctx context.Context, store storage.Service, key, dst string) error {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, rc); err != nil {
		return err
	}
	return nil
}

func readArtifact(ctx context.Context, store storage.Service, key string) (string, error) {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	var b strings.Builder
	if _, err := io.Copy(&b, rc); err != nil {
		return "", err
	}
	return b.String(), nil
}
