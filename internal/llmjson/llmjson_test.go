package llmjson_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"dubflow/internal/llmjson"
	"dubflow/internal/services"
)

type stubRepairer struct {
	output string
	err    error
	calls  int
}

func (r *stubRepairer) RepairJSON(_ context.Context, _ string) (string, error) {
	r.calls++
	return r.output, r.err
}

const validDoc = `{"language":"my","segments":[{"index":1,"start":0,"end":2,"origin":"你好","translated":"မင်္ဂလာပါ"}]}`

func TestDecodeStrictJSON(t *testing.T) {
	var out map[string]any
	if err := llmjson.Decode(context.Background(), validDoc, &out, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["language"] != "my" {
		t.Fatalf("language = %v", out["language"])
	}
}

func TestDecodeStripsFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"with language tag", "```json\n" + validDoc + "\n```"},
		{"bare fence", "```\n" + validDoc + "\n```"},
		{"fence same line", "```" + validDoc + "```"},
		{"leading whitespace", "  \n```json\n" + validDoc + "\n```\n  "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out map[string]any
			if err := llmjson.Decode(context.Background(), tc.raw, &out, nil); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if _, ok := out["segments"]; !ok {
				t.Fatal("segments missing after fence strip")
			}
		})
	}
}

func TestDecodeExtractsEmbeddedObject(t *testing.T) {
	raw := "Here is the translation you asked for:\n" + validDoc + "\nLet me know if you need anything else."
	var out map[string]any
	if err := llmjson.Decode(context.Background(), raw, &out, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out["language"] != "my" {
		t.Fatalf("language = %v", out["language"])
	}
}

func TestDecodeSingleQuotedLiteral(t *testing.T) {
	raw := `{'language': 'my', 'segments': [{'index': 1, 'start': 0, 'end': 2, 'origin': "it's fine", 'done': True, 'note': None}]}`
	var out map[string]any
	if err := llmjson.Decode(context.Background(), raw, &out, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	segs, ok := out["segments"].([]any)
	if !ok || len(segs) != 1 {
		t.Fatalf("segments = %v", out["segments"])
	}
	seg := segs[0].(map[string]any)
	if seg["origin"] != "it's fine" {
		t.Fatalf("origin = %v", seg["origin"])
	}
	if seg["done"] != true {
		t.Fatalf("done = %v", seg["done"])
	}
	if seg["note"] != nil {
		t.Fatalf("note = %v", seg["note"])
	}
}

func TestDecodeSanitizesRawNewlinesInStrings(t *testing.T) {
	raw := "{\"language\":\"my\",\"segments\":[{\"index\":1,\"start\":0,\"end\":2,\"origin\":\"line one\nline two\"}]}"
	var out map[string]any
	if err := llmjson.Decode(context.Background(), raw, &out, nil); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestDecodeUsesRepairer(t *testing.T) {
	repairer := &stubRepairer{output: "```json\n" + validDoc + "\n```"}
	var out map[string]any
	if err := llmjson.Decode(context.Background(), "total garbage, no braces", &out, repairer); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if repairer.calls != 1 {
		t.Fatalf("repairer called %d times", repairer.calls)
	}
	if out["language"] != "my" {
		t.Fatalf("language = %v", out["language"])
	}
}

func TestDecodeMalformedAfterAllStrategies(t *testing.T) {
	repairer := &stubRepairer{output: "still not json"}
	long := strings.Repeat("x", 500)
	var out map[string]any
	err := llmjson.Decode(context.Background(), long, &out, repairer)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrMalformedPayload) {
		t.Fatalf("error = %v, want malformed payload", err)
	}
	if repairer.calls != 1 {
		t.Fatalf("repairer called %d times", repairer.calls)
	}
	// The diagnostic snippet is truncated, never the whole payload.
	if len(err.Error()) > 400 {
		t.Fatalf("error carries untruncated payload: %d bytes", len(err.Error()))
	}
	if !strings.Contains(err.Error(), "xxx") {
		t.Fatal("error missing payload preview")
	}
}

func TestDecodeRepairerFailureStillMalformed(t *testing.T) {
	repairer := &stubRepairer{err: errors.New("model unavailable")}
	var out map[string]any
	err := llmjson.Decode(context.Background(), "nonsense", &out, repairer)
	if !errors.Is(err, services.ErrMalformedPayload) {
		t.Fatalf("error = %v, want malformed payload", err)
	}
}

func TestDecodePayloadValidates(t *testing.T) {
	payload, err := llmjson.DecodePayload(context.Background(), validDoc, nil, false)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if len(payload.Segments) != 1 || payload.Segments[0].Translated != "မင်္ဂလာပါ" {
		t.Fatalf("payload = %+v", payload)
	}

	_, err = llmjson.DecodePayload(context.Background(), `{"segments":[]}`, nil, false)
	if !errors.Is(err, services.ErrSchemaViolation) {
		t.Fatalf("empty segments error = %v, want schema violation", err)
	}

	_, err = llmjson.DecodePayload(context.Background(), validDoc, nil, true)
	if !errors.Is(err, services.ErrSchemaViolation) {
		t.Fatalf("missing scenes error = %v, want schema violation", err)
	}
}

func TestValidateSegmentShape(t *testing.T) {
	missingOrigin := `{"segments":[{"index":1,"start":0,"end":2}]}`
	if _, err := llmjson.DecodePayload(context.Background(), missingOrigin, nil, false); !errors.Is(err, services.ErrSchemaViolation) {
		t.Fatalf("missing origin error = %v", err)
	}

	inverted := `{"segments":[{"index":1,"start":5,"end":2,"origin":"x"}]}`
	if _, err := llmjson.DecodePayload(context.Background(), inverted, nil, false); !errors.Is(err, services.ErrSchemaViolation) {
		t.Fatalf("inverted times error = %v", err)
	}
}

func TestSnippetTruncates(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := llmjson.Snippet(long)
	if len(got) != 203 {
		t.Fatalf("snippet length = %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("snippet = %q", got)
	}
}

func TestSnippetKeepsRuneBoundary(t *testing.T) {
	// 199 ASCII bytes followed by a 3-byte rune straddling the cut point.
	long := strings.Repeat("a", 199) + strings.Repeat("မ", 40)
	got := llmjson.Snippet(long)
	if !utf8.ValidString(got) {
		t.Fatalf("snippet is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("snippet = %q", got)
	}
	if len(got) != 202 {
		t.Fatalf("snippet length = %d, want cut before the split rune", len(got))
	}
}
