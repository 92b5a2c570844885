package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubflow/internal/services"
)

const (
	lovoDefaultBaseURL = "https://api.genny.lovo.ai/api/v1"
	lovoHTTPTimeout    = 120 * time.Second
)

// Lovo calls the Lovo Genny TTS API.
type Lovo struct {
	apiKey     string
	baseURL    string
	speaker    string
	httpClient *http.Client
}

// LovoOption customizes the Lovo client.
type LovoOption func(*Lovo)

// WithLovoHTTPClient overrides the default HTTP client.
func WithLovoHTTPClient(client *http.Client) LovoOption {
	return func(l *Lovo) {
		if client != nil {
			l.httpClient = client
		}
	}
}

// NewLovo constructs a Lovo synthesizer.
func NewLovo(apiKey, baseURL, speaker string, opts ...LovoOption) *Lovo {
	l := &Lovo{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		speaker:    strings.TrimSpace(speaker),
		httpClient: &http.Client{Timeout: lovoHTTPTimeout},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.baseURL == "" {
		l.baseURL = lovoDefaultBaseURL
	}
	return l
}

// Name identifies the provider.
func (l *Lovo) Name() string { return "lovo" }

type lovoSyncResponse struct {
	Data []struct {
		URLs []string `json:"urls"`
	} `json:"data"`
	Error string `json:"error"`
}

// Synthesize renders text through the synchronous conversion endpoint and
// downloads the resulting audio to outPath.
func (l *Lovo) Synthesize(ctx context.Context, text, outPath string) error {
	if l.apiKey == "" {
		return services.Wrap(services.ErrConfiguration, "", "lovo", "api key not configured", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "", "lovo", "empty text", nil)
	}

	body, err := json.Marshal(map[string]any{
		"speed":   1.0,
		"text":    text,
		"speaker": l.speaker,
	})
	if err != nil {
		return fmt.Errorf("marshal lovo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/tts/sync", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build lovo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", l.apiKey)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrProvider, "", "lovo", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return services.Wrap(services.ErrProvider, "", "lovo", "read response", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return services.Wrap(services.ErrProvider, "", "lovo",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}

	var decoded lovoSyncResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return services.Wrap(services.ErrProvider, "", "lovo", "decode response", err)
	}
	if decoded.Error != "" {
		return services.Wrap(services.ErrProvider, "", "lovo", decoded.Error, nil)
	}
	if len(decoded.Data) == 0 || len(decoded.Data[0].URLs) == 0 {
		return services.Wrap(services.ErrProvider, "", "lovo", "response has no audio urls", nil)
	}

	return l.downloadAudio(ctx, decoded.Data[0].URLs[0], outPath)
}

func (l *Lovo) downloadAudio(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build audio request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrProvider, "", "lovo", "fetch audio", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrProvider, "", "lovo",
			fmt.Sprintf("fetch audio: http %d", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create tts dir: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}
