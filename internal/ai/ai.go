// Package ai wraps the text-completion model used to classify exercises and
// write weekly insights.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrMissingAPIKey is returned when no model credentials are configured.
	ErrMissingAPIKey = errors.New("ai: missing api key")
	// ErrRateLimited is returned when the model provider or the local
	// limiter refused the call.
	ErrRateLimited = errors.New("ai: rate limited")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("ai: empty response")
	// ErrNoJSON is returned when no JSON object could be found in the reply.
	ErrNoJSON = errors.New("ai: no json object in response")
)

// Status values reported to clients.
const (
	StatusOK            = "ok"
	StatusRateLimited   = "rate_limited"
	StatusFailed        = "failed"
	StatusMissingAPIKey = "missing_api_key"
	StatusSkipped       = "skipped"
)

// Completer turns a prompt into raw model text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// StatusFor maps an AI call outcome to a client-facing status.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrMissingAPIKey):
		return StatusMissingAPIKey
	case errors.Is(err, ErrRateLimited):
		return StatusRateLimited
	default:
		return StatusFailed
	}
}

// ExtractJSON returns the first JSON object in text. The whole text is tried
// first; otherwise each '{' starts a brace-balanced scan that ignores braces
// inside string literals, and the first valid block wins.
func ExtractJSON(text string) ([]byte, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if strings.HasPrefix(text, "{") && json.Valid([]byte(text)) {
		return []byte(text), true
	}
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := balancedEnd(text, start); end > start {
			block := text[start : end+1]
			if json.Valid([]byte(block)) {
				return []byte(block), true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// balancedEnd returns the index of the brace closing the one at start, or -1.
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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

// Truncate cuts s to at most n runes after trimming whitespace.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
