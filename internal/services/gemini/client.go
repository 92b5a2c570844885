// Package gemini wraps the Gemini generateContent API for subtitle
// translation and JSON repair.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dubflow/internal/llmjson"
	"dubflow/internal/services"
	"dubflow/internal/subtitle"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel          = "gemini-2.0-flash"
	defaultHTTPTimeout    = 60 * time.Second
	defaultChunkSize      = 20
	defaultChunkRetries   = 2
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config captures the runtime settings required to talk to Gemini.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
	ChunkSize      int
	ChunkRetries   int
}

// Client issues translation and repair calls against Gemini.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a Gemini client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			ChunkSize:      cfg.ChunkSize,
			ChunkRetries:   cfg.ChunkRetries,
		},
		httpClient:     &http.Client{Timeout: timeout},
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
		sleeper:        time.Sleep,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.Model == "" {
		client.cfg.Model = defaultModel
	}
	if client.cfg.ChunkSize <= 0 {
		client.cfg.ChunkSize = defaultChunkSize
	}
	if client.cfg.ChunkRetries < 0 {
		client.cfg.ChunkRetries = defaultChunkRetries
	}
	return client
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// generate performs one generateContent call and returns the first
// candidate's text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "", "gemini", "api key not configured", nil)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "", "gemini", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "", "gemini", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrProvider, "", "gemini",
			fmt.Sprintf("http %d: %s", resp.StatusCode, llmjson.Snippet(string(payload))), nil)
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", services.Wrap(services.ErrProvider, "", "gemini", "decode response envelope", err)
	}
	if decoded.Error != nil {
		return "", services.Wrap(services.ErrProvider, "", "gemini",
			fmt.Sprintf("api error %d: %s", decoded.Error.Code, decoded.Error.Message), nil)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", services.Wrap(services.ErrProvider, "", "gemini", "empty candidate content", nil)
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}

// RepairJSON asks the model to re-emit malformed text as valid JSON. It
// implements llmjson.Repairer.
func (c *Client) RepairJSON(ctx context.Context, malformed string) (string, error) {
	prompt := "The following text was supposed to be a single valid JSON object but is malformed. " +
		"Re-emit it as strictly valid JSON. Output only the JSON object, no commentary, no markdown.\n\n" +
		malformed
	return c.generate(ctx, prompt)
}

// Translate renders the entries into the target language. Entries are sent
// in fixed-size chunks with bounded retries per chunk, so one bad chunk
// never forces retranslation of the whole document. Returned entries carry
// translated text; ordering and timing are preserved from the input.
func (c *Client) Translate(ctx context.Context, entries []subtitle.Entry, targetLang string) ([]subtitle.Entry, error) {
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "gemini translate", "no entries to translate", nil)
	}

	out := make([]subtitle.Entry, len(entries))
	copy(out, entries)

	for offset := 0; offset < len(entries); offset += c.cfg.ChunkSize {
		end := offset + c.cfg.ChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		translated, err := c.translateChunk(ctx, entries[offset:end], targetLang)
		if err != nil {
			return nil, fmt.Errorf("chunk %d-%d: %w", offset, end-1, err)
		}
		for i, text := range translated {
			out[offset+i].Translated = text
		}
	}
	return out, nil
}

func (c *Client) translateChunk(ctx context.Context, chunk []subtitle.Entry, targetLang string) ([]string, error) {
	prompt := buildTranslatePrompt(chunk, targetLang)

	attempts := c.cfg.ChunkRetries + 1
	delay := c.retryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := c.generate(ctx, prompt)
		if err == nil {
			var payload llmjson.Payload
			if decodeErr := llmjson.Decode(ctx, raw, &payload, c); decodeErr != nil {
				err = decodeErr
			} else if validateErr := payload.Validate(false); validateErr != nil {
				err = validateErr
			} else if texts, extractErr := matchTranslations(chunk, payload.Segments); extractErr != nil {
				err = extractErr
			} else {
				return texts, nil
			}
		}

		lastErr = err
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		c.sleeper(delay)
		if next := delay * 2; next <= c.retryMaxDelay {
			delay = next
		}
	}
	return nil, lastErr
}

func buildTranslatePrompt(chunk []subtitle.Entry, targetLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the following subtitle segments into %s. ", targetLang)
	b.WriteString("Respond with a single JSON object of the form ")
	b.WriteString(`{"segments":[{"index":N,"start":S,"end":E,"origin":"...","translated":"..."}]}. `)
	b.WriteString("Keep every index, start, and end exactly as given, translate only the text.\n\n")
	doc := llmjson.Payload{Segments: make([]llmjson.Segment, 0, len(chunk))}
	for _, entry := range chunk {
		doc.Segments = append(doc.Segments, llmjson.Segment{
			Index:  entry.Index,
			Start:  entry.Start,
			End:    entry.End,
			Origin: entry.Origin,
		})
	}
	encoded, _ := json.Marshal(doc)
	b.Write(encoded)
	return b.String()
}

func matchTranslations(chunk []subtitle.Entry, segments []llmjson.Segment) ([]string, error) {
	byIndex := make(map[int]string, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Translated) != "" {
			byIndex[seg.Index] = seg.Translated
		}
	}

	texts := make([]string, len(chunk))
	for i, entry := range chunk {
		text, ok := byIndex[entry.Index]
		if !ok {
			// Positional fallback for models that renumber segments.
			if i < len(segments) && strings.TrimSpace(segments[i].Translated) != "" {
				text = segments[i].Translated
			} else {
				return nil, fmt.Errorf("segment %d missing translation", entry.Index)
			}
		}
		texts[i] = text
	}
	return texts, nil
}
