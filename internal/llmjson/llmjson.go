// Package llmjson recovers JSON objects from unreliable LLM output.
//
// Model responses arrive wrapped in markdown fences, with single-quoted
// pseudo-JSON, with prose around the object, or with raw newlines inside
// string values. Decode tries a fixed ladder of recovery strategies and
// fails with a malformed-payload error only after all of them are exhausted.
package llmjson

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"dubflow/internal/services"
)

// Repairer re-emits malformed text as valid JSON, typically by asking a
// model to correct its own output.
type Repairer interface {
	RepairJSON(ctx context.Context, malformed string) (string, error)
}

// snippetLimit bounds the diagnostic preview carried by decode failures.
const snippetLimit = 200

var objectBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// Decode extracts a JSON object from raw model output into out. Recovery
// strategies run strictly in order: fence stripping, strict parse, first
// {...} block extraction, single-quoted literal normalization, and finally
// one repair round via the optional repairer. The returned error wraps
// services.ErrMalformedPayload when every strategy fails.
func Decode(ctx context.Context, raw string, out any, repairer Repairer) error {
	candidate := StripFences(raw)

	if tryParse(candidate, out) {
		return nil
	}

	if block := objectBlockRe.FindString(candidate); block != "" && block != candidate {
		if tryParse(block, out) {
			return nil
		}
		candidate = block
	}

	if relaxed := normalizeSingleQuotes(candidate); relaxed != candidate && tryParse(relaxed, out) {
		return nil
	}

	if repairer != nil {
		repaired, err := repairer.RepairJSON(ctx, candidate)
		if err == nil {
			repaired = StripFences(repaired)
			if tryParse(repaired, out) {
				return nil
			}
			if block := objectBlockRe.FindString(repaired); block != "" && tryParse(block, out) {
				return nil
			}
		}
	}

	return services.Wrap(services.ErrMalformedPayload, "", "decode llm json",
		fmt.Sprintf("unrecoverable payload: %s", Snippet(raw)), nil)
}

func tryParse(candidate string, out any) bool {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false
	}
	if json.Unmarshal([]byte(candidate), out) == nil {
		return true
	}
	// Models sometimes emit raw newlines inside string values, which strict
	// JSON rejects. Retry with them escaped.
	sanitized := sanitizeNewlines(candidate)
	if sanitized != candidate && json.Unmarshal([]byte(sanitized), out) == nil {
		return true
	}
	return false
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag. Text without a fence is returned trimmed.
func StripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(text[:idx])
		// A language tag occupies the remainder of the fence line.
		if firstLine != "" && !strings.ContainsAny(firstLine, "{}[]\"") {
			text = text[idx+1:]
		} else if firstLine == "" {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// sanitizeNewlines escapes raw newline characters that appear inside JSON
// string values.
func sanitizeNewlines(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString := false
	escaped := false
	for _, r := range text {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		switch r {
		case '\\':
			b.WriteRune(r)
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
			b.WriteRune(r)
		case '\n':
			if inString {
				b.WriteString(`\n`)
			} else {
				b.WriteRune(r)
			}
		case '\r':
			if inString {
				b.WriteString(`\r`)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeSingleQuotes rewrites Python-dict-literal style text into JSON:
// single-quoted keys/strings become double-quoted, and True/False/None
// become their JSON counterparts. Double-quoted strings pass through
// untouched so embedded apostrophes survive.
func normalizeSingleQuotes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch r {
		case '"':
			// Copy a double-quoted string verbatim.
			b.WriteRune(r)
			i++
			for i < len(runes) {
				b.WriteRune(runes[i])
				if runes[i] == '\\' && i+1 < len(runes) {
					i++
					b.WriteRune(runes[i])
				} else if runes[i] == '"' {
					i++
					break
				}
				i++
			}
		case '\'':
			// Convert a single-quoted string to double quotes, escaping any
			// embedded double quotes and unescaping \' sequences.
			b.WriteRune('"')
			i++
			for i < len(runes) {
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					next := runes[i+1]
					if next == '\'' {
						b.WriteRune('\'')
					} else {
						b.WriteRune('\\')
						b.WriteRune(next)
					}
					i += 2
					continue
				}
				if c == '\'' {
					i++
					break
				}
				if c == '"' {
					b.WriteString(`\"`)
				} else {
					b.WriteRune(c)
				}
				i++
			}
			b.WriteRune('"')
		default:
			if replaced, consumed := replaceLiteral(runes[i:]); consumed > 0 {
				b.WriteString(replaced)
				i += consumed
				continue
			}
			b.WriteRune(r)
			i++
		}
	}
	return b.String()
}

var pythonLiterals = []struct {
	token       string
	replacement string
}{
	{"True", "true"},
	{"False", "false"},
	{"None", "null"},
}

func replaceLiteral(runes []rune) (string, int) {
	for _, lit := range pythonLiterals {
		token := []rune(lit.token)
		if len(runes) < len(token) {
			continue
		}
		match := true
		for i, tr := range token {
			if runes[i] != tr {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if len(runes) > len(token) && isWordRune(runes[len(token)]) {
			continue
		}
		return lit.replacement, len(token)
	}
	return "", 0
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// Snippet truncates raw text for inclusion in error messages. Truncation
// lands on a rune boundary so the diagnostic stays valid UTF-8.
func Snippet(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.ReplaceAll(text, "\n", " ")
	if len(text) <= snippetLimit {
		return text
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
