// Package xiongmao resolves short-video share links into direct media URLs
// via the Xiongmao parsing API.
package xiongmao

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dubflow/internal/services"
)

// successCode is the API's status code for a successful resolution.
const successCode = "10000"

const defaultHTTPTimeout = 30 * time.Second

// Config captures the runtime settings for the resolver API.
type Config struct {
	APIBase string
	APIKey  string
	AppID   string
}

// Media is the resolved form of a share link.
type Media struct {
	PlayURL  string
	CoverURL string
	Title    string
	Author   string
	Platform string
}

// Client calls the resolver API.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a resolver client.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			APIBase: strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
			APIKey:  strings.TrimSpace(cfg.APIKey),
			AppID:   strings.TrimSpace(cfg.AppID),
		},
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type resolveResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		PlayURL  string `json:"play_url"`
		CoverURL string `json:"cover_url"`
		Title    string `json:"title"`
		Author   string `json:"author"`
		Platform string `json:"platform"`
	} `json:"data"`
}

// Resolve turns a share link into a direct media URL. Any non-success API
// code is a provider failure carrying the upstream message.
func (c *Client) Resolve(ctx context.Context, shareURL string) (Media, error) {
	if c.cfg.APIBase == "" {
		return Media{}, services.Wrap(services.ErrConfiguration, "", "xiongmao", "api base not configured", nil)
	}
	shareURL = strings.TrimSpace(shareURL)
	if shareURL == "" {
		return Media{}, services.Wrap(services.ErrValidation, "", "xiongmao", "empty share url", nil)
	}

	endpoint := fmt.Sprintf("%s/api/parse?%s", c.cfg.APIBase, url.Values{
		"url":    {shareURL},
		"key":    {c.cfg.APIKey},
		"app_id": {c.cfg.AppID},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Media{}, fmt.Errorf("build resolve request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Media{}, services.Wrap(services.ErrProvider, "", "xiongmao", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Media{}, services.Wrap(services.ErrProvider, "", "xiongmao", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Media{}, services.Wrap(services.ErrProvider, "", "xiongmao",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	var decoded resolveResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Media{}, services.Wrap(services.ErrProvider, "", "xiongmao", "decode response", err)
	}
	if decoded.Code != successCode {
		return Media{}, services.Wrap(services.ErrProvider, "", "xiongmao",
			fmt.Sprintf("api code %s: %s", decoded.Code, decoded.Msg), nil)
	}
	if decoded.Data.PlayURL == "" {
		return Media{}, services.Wrap(services.ErrProvider, "", "xiongmao", "response missing play_url", nil)
	}

	return Media{
		PlayURL:  decoded.Data.PlayURL,
		CoverURL: decoded.Data.CoverURL,
		Title:    decoded.Data.Title,
		Author:   decoded.Data.Author,
		Platform: decoded.Data.Platform,
	}, nil
}
