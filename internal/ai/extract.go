package ai

import (
	"encoding/json"
	"strings"

	"github.com/matheus3301/tgtriage/internal/apperr"
)

// ExtractJSON pulls the JSON payload out of a model reply. It tries a
// ```json fence, then any fence, then the outermost array, then the
// outermost object, and finally returns the trimmed text unchanged.
func ExtractJSON(text string) string {
	if body, ok := fenced(text, "```json"); ok {
		return body
	}
	if body, ok := fenced(text, "```"); ok {
		return body
	}
	if body, ok := span(text, '[', ']'); ok {
		return body
	}
	if body, ok := span(text, '{', '}'); ok {
		return body
	}
	return strings.TrimSpace(text)
}

// Decode extracts JSON from text and unmarshals it into T. Failures are
// reported as ParseFailure so callers never retry them.
func Decode[T any](op, text string) (T, error) {
	var out T
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &out); err != nil {
		return out, apperr.New(apperr.ParseFailure, op, err)
	}
	return out, nil
}

func fenced(text, open string) (string, bool) {
	start := strings.Index(text, open)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(open):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func span(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
