// Package subtitle models subtitle entries and the SRT text format.
package subtitle

import (
	"fmt"
	"strconv"
	"strings"
)

// Entry is one subtitle cue. Times are absolute seconds from the start of
// the source media. Translated and SceneID are filled in by later pipeline
// steps and may be empty.
type Entry struct {
	Index      int     `json:"index"`
	Start      float64 `json:"start_seconds"`
	End        float64 `json:"end_seconds"`
	Origin     string  `json:"origin_text"`
	Translated string  `json:"translated_text,omitempty"`
	SceneID    string  `json:"scene_id,omitempty"`
}

// Duration reports the cue length in seconds.
func (e Entry) Duration() float64 {
	return e.End - e.Start
}

// Text returns the translated text when present, falling back to the origin
// text so downstream steps always have something to render.
func (e Entry) Text() string {
	if strings.TrimSpace(e.Translated) != "" {
		return e.Translated
	}
	return e.Origin
}

// ParseSRT decodes SRT content into ordered entries. Blocks with malformed
// indices or timestamps are skipped rather than failing the whole document;
// transcriber output is not trusted to be pristine.
func ParseSRT(content string) ([]Entry, error) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(normalized), "\n\n")

	var entries []Entry
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}

		offset := 0
		index := len(entries) + 1
		if parsed, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
			index = parsed
			offset = 1
		}
		if offset >= len(lines) {
			continue
		}

		start, end, err := parseTimeRange(lines[offset])
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[offset+1:], "\n"))
		if text == "" || end <= start {
			continue
		}

		entries = append(entries, Entry{
			Index:  index,
			Start:  start,
			End:    end,
			Origin: text,
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no parseable cues in srt content")
	}
	return entries, nil
}

// FormatSRT renders entries as SRT text. Indices are renumbered from 1 so
// filtered or re-timed sequences stay valid. When translated is true the
// translated text is preferred over the origin text.
func FormatSRT(entries []Entry, translated bool) string {
	var b strings.Builder
	for i, entry := range entries {
		text := entry.Origin
		if translated {
			text = entry.Text()
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(entry.Start),
			FormatTimestamp(entry.End),
			strings.TrimSpace(text),
		)
	}
	return b.String()
}

// ToText renders the entries' display text as plain lines, one per cue.
func ToText(entries []Entry, translated bool) string {
	var b strings.Builder
	for _, entry := range entries {
		text := entry.Origin
		if translated {
			text = entry.Text()
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatTimestamp renders seconds as an SRT timestamp (HH:MM:SS,mmm).
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	millis -= h * 3600000
	m := millis / 60000
	millis -= m * 60000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// ParseTimestamp converts an SRT timestamp to seconds. Periods are accepted
// in place of the standard comma separator.
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}

func parseTimeRange(line string) (float64, float64, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time range %q", line)
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseTimestamp(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
