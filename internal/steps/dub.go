package steps

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"dubflow/internal/artifacts"
	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/services/tts"
	"dubflow/internal/storage"
	"dubflow/internal/task"
	"dubflow/internal/workspace"
)

// Dub synthesizes speech from the translated text. Dubbing empty text is an
// error, not a no-op: the stage fails fast when the translated subtitles are
// missing or blank.
type Dub struct {
	edge   Synthesizer
	lovo   Synthesizer
	media  MediaToolkit
	store  storage.Service
	ws     *workspace.Workspace
	logger *slog.Logger
}

// NewDub constructs the dub step handler.
func NewDub(edge, lovo Synthesizer, media MediaToolkit, store storage.Service, ws *workspace.Workspace, logger *slog.Logger) *Dub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dub{edge: edge, lovo: lovo, media: media, store: store, ws: ws, logger: logger}
}

// Step reports the stage this handler implements.
func (d *Dub) Step() task.Step { return task.StepDub }

// Run executes the dub stage.
func (d *Dub) Run(ctx context.Context, t *task.Task) (Result, error) {
	if t.ArtifactKey(task.StepSubtitles) == "" {
		return Result{}, services.Wrap(services.ErrPrerequisite, "dub", "locate translated text",
			"subtitles stage has not produced a translated artifact", nil)
	}

	textKey := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.TranslatedText)
	text, err := readArtifact(ctx, d.store, textKey)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPrerequisite, "dub", "read translated text",
			"translated text artifact "+textKey+" is unavailable", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, services.Wrap(services.ErrPrerequisite, "dub", "read translated text",
			"translated text is empty, nothing to dub", nil)
	}

	if err := d.ws.EnsureTaskDirs(t.ID); err != nil {
		return Result{}, services.Wrap(services.ErrFatal, "dub", "prepare workspace", "", err)
	}

	synth := tts.ForMode(t.PipelineConfig.DubMode, d.edge, d.lovo)
	if synth == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "dub", "select synthesizer",
			"no synthesizer configured for mode "+t.PipelineConfig.DubMode, nil)
	}
	outPath := d.ws.DubPath(t.ID)
	synthPath := outPath + ".raw"
	if err := synth.Synthesize(ctx, text, synthPath); err != nil {
		return Result{}, err
	}
	if info, statErr := os.Stat(synthPath); statErr != nil || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrProvider, "dub", "synthesize",
			"synthesizer produced no audio", statErr)
	}

	// edge-tts emits mp3 directly; Lovo hands back wav.
	converted := false
	if sniffMP3(synthPath) {
		if err := os.Rename(synthPath, outPath); err != nil {
			return Result{}, services.Wrap(services.ErrFatal, "dub", "place dub audio", "", err)
		}
	} else {
		if err := d.media.ConvertMP3(ctx, synthPath, outPath); err != nil {
			return Result{}, services.Wrap(services.ErrProvider, "dub", "convert dub audio to mp3", "", err)
		}
		_ = os.Remove(synthPath)
		converted = true
	}

	key := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.DubAudio)
	if err := storage.UploadFile(ctx, d.store, key, outPath); err != nil {
		return Result{}, services.Wrap(services.ErrProvider, "dub", "upload dub audio", "", err)
	}

	return Result{
		ArtifactKey: key,
		Metadata: map[string]string{
			"synthesizer": synth.Name(),
			"converted":   strconv.FormatBool(converted),
		},
	}, nil
}

// sniffMP3 reports whether the file begins with an ID3 tag or an MPEG audio
// frame sync.
func sniffMP3(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var header [3]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return false
	}
	if string(header[:]) == "ID3" {
		return true
	}
	return header[0] == 0xFF && header[1]&0xE0 == 0xE0
}
