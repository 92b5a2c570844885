package config

const (
	defaultWorkspaceDir        = "~/.local/share/dubflow/workspace"
	defaultLogDir              = "~/.local/share/dubflow/logs"
	defaultTenant              = "default"
	defaultProject             = "default"
	defaultPollIntervalSeconds = 5
	defaultMaxConcurrentTasks  = 2
	defaultDownloadRetries     = 3
	defaultDownloadTimeout     = 60
	defaultBackoffBaseMillis   = 500
	defaultBackoffMaxSeconds   = 10
	defaultGeminiBaseURL       = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel         = "gemini-2.0-flash"
	defaultGeminiTimeout       = 60
	defaultGeminiChunkSize     = 20
	defaultGeminiChunkRetries  = 2
	defaultWhisperBinary       = "whisper-cli"
	defaultWhisperModel        = "base"
	defaultEdgeBinary          = "edge-tts"
	defaultEdgeVoice           = "my-MM-NilarNeural"
	defaultLovoBaseURL         = "https://api.genny.lovo.ai/api/v1"
	defaultStorageProvider     = "local"
	defaultStorageRegion       = "auto"
	defaultMinSceneSeconds     = 6.0
	defaultMaxSceneSeconds     = 15.0
	defaultMinLines            = 3
	defaultMaxLines            = 5
	defaultTargetLanguage      = "my"
	defaultVoice               = "mm_female_1"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Scope: Scope{
			Tenant:  defaultTenant,
			Project: defaultProject,
		},
		Pipeline: Pipeline{
			PollIntervalSeconds: defaultPollIntervalSeconds,
			MaxConcurrentTasks:  defaultMaxConcurrentTasks,
		},
		Steps: Steps{
			Parse:     true,
			Subtitles: true,
			Dub:       true,
			Pack:      true,
			Publish:   true,
		},
		Download: Download{
			Retries:           defaultDownloadRetries,
			TimeoutSeconds:    defaultDownloadTimeout,
			BackoffBaseMillis: defaultBackoffBaseMillis,
			BackoffMaxSeconds: defaultBackoffMaxSeconds,
		},
		Gemini: Gemini{
			BaseURL:        defaultGeminiBaseURL,
			Model:          defaultGeminiModel,
			TimeoutSeconds: defaultGeminiTimeout,
			ChunkSize:      defaultGeminiChunkSize,
			ChunkRetries:   defaultGeminiChunkRetries,
		},
		Whisper: Whisper{
			Binary: defaultWhisperBinary,
			Model:  defaultWhisperModel,
		},
		TTS: TTS{
			EdgeBinary:  defaultEdgeBinary,
			EdgeVoice:   defaultEdgeVoice,
			LovoBaseURL: defaultLovoBaseURL,
		},
		Storage: Storage{
			Provider: defaultStorageProvider,
			Region:   defaultStorageRegion,
		},
		Scenes: Scenes{
			MinSceneSeconds: defaultMinSceneSeconds,
			MaxSceneSeconds: defaultMaxSceneSeconds,
			MinLines:        defaultMinLines,
			MaxLines:        defaultMaxLines,
		},
		Language: Language{
			Target: defaultTargetLanguage,
			Voice:  defaultVoice,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
