package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScope()
	c.normalizePipeline()
	c.normalizeDownload()
	c.normalizeGemini()
	c.normalizeWhisper()
	c.normalizeTTS()
	c.normalizeStorage()
	c.normalizeScenes()
	c.normalizeLanguage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScope() {
	if strings.TrimSpace(c.Scope.Tenant) == "" {
		c.Scope.Tenant = defaultTenant
	}
	if strings.TrimSpace(c.Scope.Project) == "" {
		c.Scope.Project = defaultProject
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.PollIntervalSeconds <= 0 {
		c.Pipeline.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Pipeline.MaxConcurrentTasks <= 0 {
		c.Pipeline.MaxConcurrentTasks = defaultMaxConcurrentTasks
	}
}

func (c *Config) normalizeDownload() {
	if c.Download.Retries < 0 {
		c.Download.Retries = defaultDownloadRetries
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.BackoffBaseMillis <= 0 {
		c.Download.BackoffBaseMillis = defaultBackoffBaseMillis
	}
	if c.Download.BackoffMaxSeconds <= 0 {
		c.Download.BackoffMaxSeconds = defaultBackoffMaxSeconds
	}
}

func (c *Config) normalizeGemini() {
	if strings.TrimSpace(c.Gemini.BaseURL) == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	if c.Gemini.TimeoutSeconds <= 0 {
		c.Gemini.TimeoutSeconds = defaultGeminiTimeout
	}
	if c.Gemini.ChunkSize <= 0 {
		c.Gemini.ChunkSize = defaultGeminiChunkSize
	}
	if c.Gemini.ChunkRetries <= 0 {
		c.Gemini.ChunkRetries = defaultGeminiChunkRetries
	}
}

func (c *Config) normalizeWhisper() {
	if strings.TrimSpace(c.Whisper.Binary) == "" {
		c.Whisper.Binary = defaultWhisperBinary
	}
	if strings.TrimSpace(c.Whisper.Model) == "" {
		c.Whisper.Model = defaultWhisperModel
	}
}

func (c *Config) normalizeTTS() {
	if strings.TrimSpace(c.TTS.EdgeBinary) == "" {
		c.TTS.EdgeBinary = defaultEdgeBinary
	}
	if strings.TrimSpace(c.TTS.EdgeVoice) == "" {
		c.TTS.EdgeVoice = defaultEdgeVoice
	}
	if strings.TrimSpace(c.TTS.LovoBaseURL) == "" {
		c.TTS.LovoBaseURL = defaultLovoBaseURL
	}
}

func (c *Config) normalizeStorage() {
	c.Storage.Provider = strings.ToLower(strings.TrimSpace(c.Storage.Provider))
	if c.Storage.Provider == "" {
		c.Storage.Provider = defaultStorageProvider
	}
	if strings.TrimSpace(c.Storage.Region) == "" {
		c.Storage.Region = defaultStorageRegion
	}
}

func (c *Config) normalizeScenes() {
	if c.Scenes.MinSceneSeconds <= 0 {
		c.Scenes.MinSceneSeconds = defaultMinSceneSeconds
	}
	if c.Scenes.MaxSceneSeconds <= 0 {
		c.Scenes.MaxSceneSeconds = defaultMaxSceneSeconds
	}
	if c.Scenes.MinLines <= 0 {
		c.Scenes.MinLines = defaultMinLines
	}
	if c.Scenes.MaxLines <= 0 {
		c.Scenes.MaxLines = defaultMaxLines
	}
}

func (c *Config) normalizeLanguage() {
	if strings.TrimSpace(c.Language.Target) == "" {
		c.Language.Target = defaultTargetLanguage
	}
	if strings.TrimSpace(c.Language.Voice) == "" {
		c.Language.Voice = defaultVoice
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
