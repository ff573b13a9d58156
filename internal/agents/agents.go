// Package agents holds the pluggable decision-making collaborators the
// orchestrator invokes: fact extraction, policy validation, fraud scoring,
// routing and document checks. Each agent turns provider text into a typed
// outcome via the resilient parser; retry policy lives in the orchestrator,
// not here.
package agents

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Invocation captures one provider round-trip for the audit trail
type Invocation struct {
	Prompt       string
	SystemPrompt string
	RawResponse  string
	Model        string
	TokensUsed   int
}

// clarifySuffix sharpens the request on retries, after a malformed response
const clarifySuffix = "\n\nIMPORTANT: Respond with a single valid JSON object and nothing else. No prose, no markdown fences."

func withClarification(prompt string, attempt int) string {
	if attempt > 0 {
		return prompt + clarifySuffix
	}
	return prompt
}

// Field coercion helpers: provider output is loosely typed even when it
// parses, so values are accepted in the shapes models commonly emit.

func getString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func getFloat(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		cleaned := strings.TrimSpace(strings.TrimPrefix(v, "$"))
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func getBool(m map[string]any, key string) (bool, bool) {
	switch v := m[key].(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "valid":
			return true, true
		case "false", "no", "invalid":
			return false, true
		}
	}
	return false, false
}

func getStringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// getDate accepts the date shapes models commonly produce
func getDate(m map[string]any, key string) (time.Time, bool) {
	s := getString(m, key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "01/02/2006", "Jan 2 2006", "Jan 2, 2006", "2 January 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// confidenceOf reads an optional confidence field, clamped to [0,1]
func confidenceOf(m map[string]any) *float64 {
	c, ok := getFloat(m, "confidence")
	if !ok {
		return nil
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return &c
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func fmtAmount(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}
