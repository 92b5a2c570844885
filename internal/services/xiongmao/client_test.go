package xiongmao_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dubflow/internal/services"
	"dubflow/internal/services/xiongmao"
)

func TestResolveSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://v.douyin.com/abc/" {
			t.Errorf("url param = %q", got)
		}
		if got := r.URL.Query().Get("key"); got != "k1" {
			t.Errorf("key param = %q", got)
		}
		_, _ = w.Write([]byte(`{"code":"10000","msg":"ok","data":{"play_url":"https://cdn.example.com/v.mp4","title":"clip","platform":"douyin"}}`))
	}))
	defer server.Close()

	client := xiongmao.NewClient(xiongmao.Config{APIBase: server.URL, APIKey: "k1", AppID: "a1"})
	media, err := client.Resolve(context.Background(), "https://v.douyin.com/abc/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if media.PlayURL != "https://cdn.example.com/v.mp4" || media.Title != "clip" || media.Platform != "douyin" {
		t.Fatalf("media = %+v", media)
	}
}

func TestResolveAPIErrorCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"20001","msg":"unsupported link"}`))
	}))
	defer server.Close()

	client := xiongmao.NewClient(xiongmao.Config{APIBase: server.URL})
	_, err := client.Resolve(context.Background(), "https://example.com/x")
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("error = %v, want provider error", err)
	}
	if !strings.Contains(err.Error(), "unsupported link") {
		t.Fatalf("error %q missing upstream message", err)
	}
}

func TestResolveMissingPlayURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"10000","data":{}}`))
	}))
	defer server.Close()

	client := xiongmao.NewClient(xiongmao.Config{APIBase: server.URL})
	if _, err := client.Resolve(context.Background(), "https://example.com/x"); !errors.Is(err, services.ErrProvider) {
		t.Fatalf("error = %v, want provider error", err)
	}
}

func TestResolveValidation(t *testing.T) {
	client := xiongmao.NewClient(xiongmao.Config{APIBase: "http://127.0.0.1:1"})
	if _, err := client.Resolve(context.Background(), "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}

	unconfigured := xiongmao.NewClient(xiongmao.Config{})
	if _, err := unconfigured.Resolve(context.Background(), "https://x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}
