package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	LogDir       string `toml:"log_dir"`
}

// Scope identifies the tenant/project namespace used for artifact keys.
type Scope struct {
	Tenant  string `toml:"tenant"`
	Project string `toml:"project"`
}

// Pipeline contains daemon scheduling settings.
type Pipeline struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	MaxConcurrentTasks  int `toml:"max_concurrent_tasks"`
}

// Steps controls administrative enable/disable per pipeline step.
type Steps struct {
	Parse     bool `toml:"parse"`
	Subtitles bool `toml:"subtitles"`
	Dub       bool `toml:"dub"`
	Pack      bool `toml:"pack"`
	Publish   bool `toml:"publish"`
	SkipDub   bool `toml:"skip_dub"`
}

// Download contains raw media download retry settings.
type Download struct {
	Retries           int `toml:"retries"`
	TimeoutSeconds    int `toml:"timeout_seconds"`
	BackoffBaseMillis int `toml:"backoff_base_millis"`
	BackoffMaxSeconds int `toml:"backoff_max_seconds"`
}

// Resolver contains settings for the short-video link resolution provider.
type Resolver struct {
	APIBase string `toml:"api_base"`
	APIKey  string `toml:"api_key"`
	AppID   string `toml:"app_id"`
}

// Gemini contains translation/repair model connection settings.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ChunkSize      int    `toml:"chunk_size"`
	ChunkRetries   int    `toml:"chunk_retries"`
}

// Whisper contains transcription settings.
type Whisper struct {
	Binary string `toml:"binary"`
	Model  string `toml:"model"`
}

// TTS contains dubbing synthesis settings.
type TTS struct {
	EdgeBinary  string `toml:"edge_binary"`
	EdgeVoice   string `toml:"edge_voice"`
	LovoAPIKey  string `toml:"lovo_api_key"`
	LovoBaseURL string `toml:"lovo_base_url"`
	LovoSpeaker string `toml:"lovo_speaker"`
}

// Storage contains object storage settings. Provider is "local" or "s3";
// the s3 provider also covers S3-compatible endpoints such as Cloudflare R2.
type Storage struct {
	Provider      string `toml:"provider"`
	Endpoint      string `toml:"endpoint"`
	Region        string `toml:"region"`
	Bucket        string `toml:"bucket"`
	AccessKeyID   string `toml:"access_key_id"`
	SecretKey     string `toml:"secret_key"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Scenes contains scene segmentation tuning.
type Scenes struct {
	MinSceneSeconds float64 `toml:"min_scene_seconds"`
	MaxSceneSeconds float64 `toml:"max_scene_seconds"`
	MinLines        int     `toml:"min_lines"`
	MaxLines        int     `toml:"max_lines"`
}

// Language contains language defaults for localization.
type Language struct {
	Target string `toml:"target"`
	Voice  string `toml:"voice"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for dubflow.
//
// Configuration sections by subsystem:
//   - Paths: workspace and log directories
//   - Scope: tenant/project namespace for artifact keys
//   - Pipeline: daemon polling and concurrency
//   - Steps: per-step enable/disable switches
//   - Download: raw media download retry/backoff
//   - Resolver: short-video link resolution provider
//   - Gemini: translation and JSON repair model
//   - Whisper: transcription binary and model
//   - TTS: edge-tts and Lovo synthesis settings
//   - Storage: object storage provider (local or s3/R2)
//   - Scenes: segmentation duration and line-count bounds
//   - Language: target language and default voice
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Scope    Scope    `toml:"scope"`
	Pipeline Pipeline `toml:"pipeline"`
	Steps    Steps    `toml:"steps"`
	Download Download `toml:"download"`
	Resolver Resolver `toml:"resolver"`
	Gemini   Gemini   `toml:"gemini"`
	Whisper  Whisper  `toml:"whisper"`
	TTS      TTS      `toml:"tts"`
	Storage  Storage  `toml:"storage"`
	Scenes   Scenes   `toml:"scenes"`
	Language Language `toml:"language"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/dubflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for media slicing.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// StepEnabled reports whether the named pipeline step is administratively enabled.
func (c *Config) StepEnabled(step string) bool {
	switch step {
	case "parse":
		return c.Steps.Parse
	case "subtitles":
		return c.Steps.Subtitles
	case "dub":
		return c.Steps.Dub
	case "pack":
		return c.Steps.Pack
	case "publish":
		return c.Steps.Publish
	default:
		return false
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
