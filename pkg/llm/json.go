package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// StripThinking removes reasoning emitted by Qwen3-style models. Everything
// up to the last </think> is dropped. A response that opens <think> and never
// closes it (cut off by max_tokens) has no answer and yields "".
func StripThinking(response string) string {
	if i := strings.LastIndex(response, thinkClose); i >= 0 {
		return strings.TrimSpace(response[i+len(thinkClose):])
	}
	if strings.HasPrefix(strings.TrimSpace(response), thinkOpen) {
		return ""
	}
	return strings.TrimSpace(response)
}

// ExtractJSONObject returns the first balanced, valid JSON object in a model
// response. Reasoning blocks, markdown fences and surrounding prose are
// ignored.
func ExtractJSONObject(response string) (string, error) {
	cleaned := StripThinking(response)

	// Objects that fail to parse are skipped so a stray brace in prose
	// doesn't hide a later payload.
	for offset := 0; offset < len(cleaned); {
		start := strings.IndexByte(cleaned[offset:], '{')
		if start < 0 {
			break
		}
		start += offset

		candidate, ok := balancedObject(cleaned[start:])
		if !ok {
			break
		}
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		offset = start + 1
	}

	return "", fmt.Errorf("no valid JSON object found in response")
}

// balancedObject returns the prefix of s, which must start with '{', up to
// the matching '}'. Braces inside JSON strings are ignored.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts a JSON object from a response and unmarshals it
// into the target.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSONObject(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
