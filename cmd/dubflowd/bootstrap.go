package main

import (
	"log/slog"
	"time"

	"dubflow/internal/config"
	"dubflow/internal/download"
	"dubflow/internal/media/ffmpeg"
	"dubflow/internal/pipeline"
	"dubflow/internal/scenes"
	"dubflow/internal/services/gemini"
	"dubflow/internal/services/tts"
	"dubflow/internal/services/whisper"
	"dubflow/internal/services/xiongmao"
	"dubflow/internal/steps"
	"dubflow/internal/storage"
	"dubflow/internal/task"
	"dubflow/internal/workspace"
)

// buildManager wires storage, the workspace, external service clients, and
// the five step handlers into a pipeline manager.
func buildManager(cfg *config.Config, store *task.Store, logger *slog.Logger) (*pipeline.Manager, error) {
	objStore, err := storage.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.New(cfg.Paths.WorkspaceDir)
	if err != nil {
		return nil, err
	}

	resolver := xiongmao.NewClient(xiongmao.Config{
		APIBase: cfg.Resolver.APIBase,
		APIKey:  cfg.Resolver.APIKey,
		AppID:   cfg.Resolver.AppID,
	})
	fetcher := download.New(download.Options{
		Retries:      cfg.Download.Retries,
		Timeout:      time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		BackoffBase:  time.Duration(cfg.Download.BackoffBaseMillis) * time.Millisecond,
		BackoffLimit: time.Duration(cfg.Download.BackoffMaxSeconds) * time.Second,
	})
	media := ffmpeg.NewRunner(cfg.FFmpegBinary())
	transcriber := whisper.NewTranscriber(cfg.Whisper.Binary, cfg.Whisper.Model)

	var translator steps.Translator
	if cfg.Gemini.APIKey != "" {
		translator = gemini.NewClient(gemini.Config{
			APIKey:         cfg.Gemini.APIKey,
			BaseURL:        cfg.Gemini.BaseURL,
			Model:          cfg.Gemini.Model,
			TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
			ChunkSize:      cfg.Gemini.ChunkSize,
			ChunkRetries:   cfg.Gemini.ChunkRetries,
		})
	}

	edge := tts.NewEdge(cfg.TTS.EdgeBinary, cfg.TTS.EdgeVoice)
	var lovo steps.Synthesizer
	if cfg.TTS.LovoAPIKey != "" {
		lovo = tts.NewLovo(cfg.TTS.LovoAPIKey, cfg.TTS.LovoBaseURL, cfg.TTS.LovoSpeaker)
	}

	sceneOpts := scenes.Options{
		MinSceneSeconds: cfg.Scenes.MinSceneSeconds,
		MaxSceneSeconds: cfg.Scenes.MaxSceneSeconds,
		MinLines:        cfg.Scenes.MinLines,
		MaxLines:        cfg.Scenes.MaxLines,
	}

	runner := pipeline.NewRunner(cfg, store, logger,
		steps.NewParse(resolver, fetcher, media, objStore, ws, logger),
		steps.NewSubtitles(media, transcriber, translator, objStore, ws, cfg.Language.Target, logger),
		steps.NewDub(edge, lovo, media, objStore, ws, logger),
		steps.NewPack(media, objStore, ws, sceneOpts, cfg.Steps.SkipDub, logger),
		steps.NewPublish(objStore, ws, logger),
	)
	return pipeline.NewManager(cfg, store, runner, logger), nil
}
