package subtitle_test

import (
	"math"
	"strings"
	"testing"

	"dubflow/internal/subtitle"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:03,500
你好世界

2
00:00:04,000 --> 00:00:06,250
第二句
第二行
`

func TestParseSRT(t *testing.T) {
	entries, err := subtitle.ParseSRT(sampleSRT)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("parsed %d entries, want 2", len(entries))
	}
	if entries[0].Start != 1.0 || entries[0].End != 3.5 {
		t.Fatalf("entry 0 times = %v..%v", entries[0].Start, entries[0].End)
	}
	if entries[0].Origin != "你好世界" {
		t.Fatalf("entry 0 text = %q", entries[0].Origin)
	}
	if entries[1].Origin != "第二句\n第二行" {
		t.Fatalf("entry 1 text = %q", entries[1].Origin)
	}
}

func TestParseSRTSkipsMalformedBlocks(t *testing.T) {
	content := "garbage block\n\n" + sampleSRT + "\n3\nnot a timestamp\ntext\n"
	entries, err := subtitle.ParseSRT(content)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("parsed %d entries, want 2", len(entries))
	}
}

func TestParseSRTHandlesCRLFAndPeriodMillis(t *testing.T) {
	content := "1\r\n00:00:00.500 --> 00:00:02.000\r\nline\r\n"
	entries, err := subtitle.ParseSRT(content)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if entries[0].Start != 0.5 || entries[0].End != 2.0 {
		t.Fatalf("times = %v..%v", entries[0].Start, entries[0].End)
	}
}

func TestParseSRTEmpty(t *testing.T) {
	if _, err := subtitle.ParseSRT("   \n\n"); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestFormatSRTRoundTrip(t *testing.T) {
	entries, err := subtitle.ParseSRT(sampleSRT)
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	rendered := subtitle.FormatSRT(entries, false)
	again, err := subtitle.ParseSRT(rendered)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(again) != len(entries) {
		t.Fatalf("round trip lost entries: %d != %d", len(again), len(entries))
	}
	for i := range entries {
		if math.Abs(again[i].Start-entries[i].Start) > 0.001 || math.Abs(again[i].End-entries[i].End) > 0.001 {
			t.Fatalf("entry %d times drifted: %v..%v vs %v..%v",
				i, again[i].Start, again[i].End, entries[i].Start, entries[i].End)
		}
		if again[i].Origin != entries[i].Origin {
			t.Fatalf("entry %d text drifted: %q vs %q", i, again[i].Origin, entries[i].Origin)
		}
	}
}

func TestFormatSRTPrefersTranslated(t *testing.T) {
	entries := []subtitle.Entry{
		{Index: 1, Start: 0, End: 1, Origin: "你好", Translated: "မင်္ဂလာပါ"},
		{Index: 2, Start: 1, End: 2, Origin: "再见"},
	}
	rendered := subtitle.FormatSRT(entries, true)
	if !strings.Contains(rendered, "မင်္ဂလာပါ") {
		t.Fatal("translated text missing from output")
	}
	if !strings.Contains(rendered, "再见") {
		t.Fatal("origin fallback missing for untranslated entry")
	}
}

func TestToText(t *testing.T) {
	entries := []subtitle.Entry{
		{Index: 1, Start: 0, End: 1, Origin: "a", Translated: "A"},
		{Index: 2, Start: 1, End: 2, Origin: "b"},
		{Index: 3, Start: 2, End: 3, Origin: "  "},
	}
	got := subtitle.ToText(entries, true)
	if got != "A\nb\n" {
		t.Fatalf("ToText = %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{3661.25, "01:01:01,250"},
		{-2, "00:00:00,000"},
	}
	for _, tc := range tests {
		if got := subtitle.FormatTimestamp(tc.seconds); got != tc.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
