package analyzer

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	errNoJSONObject = errors.New("no JSON object found in model output")

	codeFencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?```")
)

// ExtractJSON pulls a JSON object out of free-form model output. It tries, in
// order: the text without code fences, the first balanced {...} span that
// parses, and the span from the first '{' to the last '}'. The spans are
// searched inside the fence first and then in the whole text, since a fence
// may hold prose while the object follows it.
func ExtractJSON(text string) (json.RawMessage, error) {
	cleaned := stripCodeFences(text)

	if isObject(cleaned) {
		return json.RawMessage(cleaned), nil
	}

	if obj, ok := findObject(cleaned); ok {
		return obj, nil
	}
	if obj, ok := findObject(strings.TrimSpace(text)); ok {
		return obj, nil
	}

	return nil, errNoJSONObject
}

func findObject(s string) (json.RawMessage, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > start {
			candidate := s[start : end+1]
			if isObject(candidate) {
				return json.RawMessage(candidate), true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}

	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first >= 0 && last > first {
		candidate := s[first : last+1]
		if isObject(candidate) {
			return json.RawMessage(candidate), true
		}
	}
	return nil, false
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	// Unterminated fence.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
	}
	return strings.TrimSpace(text)
}

func isObject(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var v map[string]any
	return json.Unmarshal([]byte(s), &v) == nil
}

// matchBrace returns the index of the '}' closing the '{' at start, skipping
// braces inside string literals, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
