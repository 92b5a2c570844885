package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dubflow/internal/services"
	"dubflow/internal/services/gemini"
	"dubflow/internal/subtitle"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, chunkSize, chunkRetries int) (*gemini.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := gemini.NewClient(
		gemini.Config{
			APIKey:       "test-key",
			BaseURL:      server.URL,
			Model:        "gemini-2.0-flash",
			ChunkSize:    chunkSize,
			ChunkRetries: chunkRetries,
		},
		gemini.WithSleeper(func(time.Duration) {}),
	)
	return client, server
}

func candidateResponse(text string) string {
	payload := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

// echoTranslator answers any translate prompt by translating each origin
// segment to "MY:<origin>".
func echoTranslator(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		prompt := req.Contents[0].Parts[0].Text
		start := strings.Index(prompt, "{\"segments\"")
		var doc struct {
			Segments []map[string]any `json:"segments"`
		}
		if err := json.Unmarshal([]byte(prompt[start:]), &doc); err != nil {
			t.Errorf("decode prompt payload: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, seg := range doc.Segments {
			seg["translated"] = "MY:" + seg["origin"].(string)
		}
		answer, _ := json.Marshal(doc)
		_, _ = w.Write([]byte(candidateResponse("```json\n" + string(answer) + "\n```")))
	}
}

func sampleEntries() []subtitle.Entry {
	return []subtitle.Entry{
		{Index: 1, Start: 0, End: 2, Origin: "第一句"},
		{Index: 2, Start: 2, End: 4, Origin: "第二句"},
		{Index: 3, Start: 4, End: 6, Origin: "第三句"},
	}
}

func TestTranslateChunksAndPreservesOrder(t *testing.T) {
	calls := 0
	handler := echoTranslator(t)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(w, r)
	}, 2, 0)

	out, err := client.Translate(context.Background(), sampleEntries(), "Burmese")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 chunks", calls)
	}
	if len(out) != 3 {
		t.Fatalf("got %d entries", len(out))
	}
	for i, entry := range out {
		if entry.Translated != "MY:"+entry.Origin {
			t.Fatalf("entry %d translated = %q", i, entry.Translated)
		}
		if entry.Start != sampleEntries()[i].Start {
			t.Fatalf("entry %d timing changed", i)
		}
	}
}

func TestTranslateRetriesChunkOnServerError(t *testing.T) {
	calls := 0
	handler := echoTranslator(t)
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		handler(w, r)
	}, 10, 2)

	out, err := client.Translate(context.Background(), sampleEntries(), "Burmese")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want retry then success", calls)
	}
	if out[0].Translated == "" {
		t.Fatal("missing translation after retry")
	}
}

func TestTranslateExhaustsChunkRetries(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 10, 1)

	_, err := client.Translate(context.Background(), sampleEntries(), "Burmese")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("error = %v, want provider error", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want retries+1 per chunk", calls)
	}
}

func TestTranslateEmptyInput(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}, 10, 0)

	_, err := client.Translate(context.Background(), nil, "Burmese")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestRepairJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(candidateResponse(`{"fixed":true}`)))
	}, 10, 0)

	out, err := client.RepairJSON(context.Background(), "{'fixed': True")
	if err != nil {
		t.Fatalf("RepairJSON: %v", err)
	}
	if out != `{"fixed":true}` {
		t.Fatalf("repaired = %q", out)
	}
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	client := gemini.NewClient(gemini.Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	_, err := client.RepairJSON(context.Background(), "x")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}
