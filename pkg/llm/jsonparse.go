package llm

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Robust JSON extraction from LLM responses. Models wrap JSON in prose and
// code fences, emit Python literals, drop commas, and invent escape
// sequences; each strategy below is a bit more tolerant than the last. The
// public entry points never return an error; a response that defeats every
// strategy yields nil.

// ParseObject extracts a JSON object from raw LLM response text.
// Returns nil when no object can be recovered.
func ParseObject(text string) map[string]any {
	span := extractSpan(text, '{', '}')
	if span == "" {
		return parseObjectFallback(text)
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(span), &result); err == nil {
		return result
	}
	if err := json.Unmarshal([]byte(repairJSON(span)), &result); err == nil {
		return result
	}
	return parseObjectFallback(text)
}

// ParseArray extracts a JSON array of objects from raw LLM response text.
// Non-object elements are dropped. Returns nil when no array can be recovered.
func ParseArray(text string) []map[string]any {
	span := extractSpan(text, '[', ']')
	if span == "" {
		slog.Warn("No JSON array found in LLM response", "prefix", truncate(text, 200))
		return nil
	}

	var raw []any
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		if err := json.Unmarshal([]byte(repairJSON(span)), &raw); err != nil {
			slog.Warn("Failed to parse JSON array from LLM response", "error", err)
			return nil
		}
	}

	result := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			result = append(result, obj)
		}
	}
	return result
}

// extractSpan locates the outermost open..close span, after stripping any
// fenced-code markers around the payload.
func extractSpan(text string, opening, closing byte) string {
	text = stripFences(text)
	start := strings.IndexByte(text, opening)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range []string{"```json", "```markdown", "```md", "```"} {
		if strings.HasPrefix(text, prefix) {
			text = text[len(prefix):]
			break
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	pythonTrueRe    = regexp.MustCompile(`\bTrue\b`)
	pythonFalseRe   = regexp.MustCompile(`\bFalse\b`)
	pythonNoneRe    = regexp.MustCompile(`\bNone\b`)
	missingCommaRe  = regexp.MustCompile(`"(\s*\n\s*)"`)
)

// repairJSON applies the tolerant rewrites in a fixed order. The result is
// handed back to encoding/json; repairs that happen to corrupt an already
// valid document are harmless because this path only runs after strict
// parsing failed.
func repairJSON(s string) string {
	s = stripFences(s)
	s = removeControlChars(s)
	s = pythonTrueRe.ReplaceAllString(s, "true")
	s = pythonFalseRe.ReplaceAllString(s, "false")
	s = pythonNoneRe.ReplaceAllString(s, "null")
	if !strings.Contains(s, `"`) {
		s = strings.ReplaceAll(s, `'`, `"`)
	}
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = missingCommaRe.ReplaceAllString(s, `"$1,"`)
	s = normalizeEscapes(s)
	return s
}

func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// normalizeEscapes walks string literals and keeps only the standard JSON
// escapes. Any other \X becomes \\X so the consumer sees a literal backslash
// instead of a decode error.
func normalizeEscapes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inString = false
			b.WriteByte(c)
		case '\\':
			if i+1 >= len(s) {
				b.WriteString(`\\`)
				continue
			}
			next := s[i+1]
			switch next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				b.WriteByte(c)
				b.WriteByte(next)
				i++
			case 'u':
				if i+5 < len(s) && isHex(s[i+2:i+6]) {
					b.WriteString(s[i : i+6])
					i += 5
				} else {
					b.WriteString(`\\u`)
					i++
				}
			default:
				b.WriteString(`\\`)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

var (
	scoreRe          = regexp.MustCompile(`"score"\s*:\s*(\d+(?:\.\d+)?)`)
	passedRe         = regexp.MustCompile(`"passed"\s*:\s*(true|false)`)
	issuesRe         = regexp.MustCompile(`"issues"\s*:\s*\[([^\]]*)\]`)
	recommendationRe = regexp.MustCompile(`"recommendation"\s*:\s*"([^"]*)"`)
	quotedRe         = regexp.MustCompile(`"([^"]*)"`)
)

// parseObjectFallback regex-extracts the known top-level keys of a validator
// response and synthesizes a partial result. Last resort: runs only when
// structural parsing produced nothing.
func parseObjectFallback(text string) map[string]any {
	result := make(map[string]any)
	if m := scoreRe.FindStringSubmatch(text); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			result["score"] = score
		}
	}
	if m := passedRe.FindStringSubmatch(text); m != nil {
		result["passed"] = m[1] == "true"
	}
	if m := issuesRe.FindStringSubmatch(text); m != nil {
		var issues []any
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			issues = append(issues, q[1])
		}
		result["issues"] = issues
	}
	if m := recommendationRe.FindStringSubmatch(text); m != nil {
		result["recommendation"] = m[1]
	}
	if len(result) == 0 {
		slog.Warn("No JSON object recovered from LLM response", "prefix", truncate(text, 200))
		return nil
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
