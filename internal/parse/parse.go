// Package parse recovers structured records from unreliable free-text output
// produced by text-generation providers. It has no claim semantics; it is a
// pure text → map utility shared by every collaborator that talks to a
// provider.
package parse

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// previewLimit bounds the offending-text preview carried by ParseError so a
// huge malformed response cannot blow up logs or memory
const previewLimit = 240

// ParseError is returned when every strategy failed to recover a structured
// record from the text
type ParseError struct {
	Preview  string // truncated copy of the offending text
	Attempts int    // number of strategies tried
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse structured output after %d attempts: %q", e.Attempts, e.Preview)
}

// Parse tries a sequence of increasingly forgiving strategies until one
// yields a JSON object, in order:
//
//  1. direct parse of the raw text
//  2. parse of the first balanced {...} block
//  3. parse of the normalized balanced block
//  4. parse of the balanced block after stripping markdown fences
//  5. last-resort quote repair, then normalize and parse
//
// maxAttempts caps how many strategies run; zero or negative means all.
func Parse(text string, maxAttempts int) (map[string]any, error) {
	strategies := []func(string) (map[string]any, bool){
		parseDirect,
		parseCandidate,
		parseNormalizedCandidate,
		parseFenced,
		parseRepaired,
	}
	if maxAttempts <= 0 || maxAttempts > len(strategies) {
		maxAttempts = len(strategies)
	}

	attempts := 0
	for _, strategy := range strategies[:maxAttempts] {
		attempts++
		if result, ok := strategy(text); ok {
			return result, nil
		}
	}

	return nil, &ParseError{Preview: preview(text), Attempts: attempts}
}

// ExtractCandidate isolates the most likely structured substring by
// brace-balance scanning: the first complete balanced {...} block, quote
// aware so braces inside string literals do not count. An unpaired quote in
// the surrounding prose desyncs the string tracking, so when the quote-aware
// pass finds nothing a depth-only rescan runs before giving up. Returns
// false when no balanced block exists.
func ExtractCandidate(text string) (string, bool) {
	if candidate, ok := scanBalanced(text, true); ok {
		return candidate, true
	}
	return scanBalanced(text, false)
}

func scanBalanced(text string, quoteAware bool) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && r == '\\':
			escaped = true
		case quoteAware && r == '"':
			inString = !inString
		case inString:
			// Braces inside strings are payload, not structure
		case r == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case r == '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}

	return "", false
}

// Normalize strips comment-like sequences, trailing commas before closing
// braces/brackets, and disallowed control characters from a candidate block
func Normalize(candidate string) string {
	var out strings.Builder
	out.Grow(len(candidate))

	runes := []rune(candidate)
	inString := false
	escaped := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inString {
			out.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}

		switch {
		case r == '"':
			inString = true
			out.WriteRune(r)
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				out.WriteRune('\n')
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++ // skip the closing '/'
		case r == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				out.WriteRune('\n')
			}
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
			// Drop disallowed control characters
		default:
			out.WriteRune(r)
		}
	}

	return stripTrailingCommas(out.String())
}

// stripTrailingCommas removes commas that directly precede a closing brace or
// bracket (ignoring whitespace), quote aware
func stripTrailingCommas(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	runes := []rune(s)
	inString := false
	escaped := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inString {
			out.WriteRune(r)
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}

		if r == '"' {
			inString = true
			out.WriteRune(r)
			continue
		}

		if r == ',' {
			j := i + 1
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\n' || runes[j] == '\r') {
				j++
			}
			if j < len(runes) && (runes[j] == '}' || runes[j] == ']') {
				continue // drop the comma
			}
		}

		out.WriteRune(r)
	}

	return out.String()
}

func parseDirect(text string) (map[string]any, bool) {
	return tryDecode(strings.TrimSpace(text))
}

func parseCandidate(text string) (map[string]any, bool) {
	candidate, ok := ExtractCandidate(text)
	if !ok {
		return nil, false
	}
	return tryDecode(candidate)
}

func parseNormalizedCandidate(text string) (map[string]any, bool) {
	candidate, ok := ExtractCandidate(text)
	if !ok {
		return nil, false
	}
	return tryDecode(Normalize(candidate))
}

func parseFenced(text string) (map[string]any, bool) {
	candidate, ok := ExtractCandidate(stripFences(text))
	if !ok {
		return nil, false
	}
	return tryDecode(Normalize(candidate))
}

func parseRepaired(text string) (map[string]any, bool) {
	candidate, ok := ExtractCandidate(stripFences(text))
	if !ok {
		candidate = strings.TrimSpace(text)
	}
	return tryDecode(Normalize(repairQuotes(candidate)))
}

// stripFences drops markdown code-fence lines (``` or ```json) so the brace
// scan only sees the payload
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// repairQuotes is the naive last-resort repair: single quotes used as string
// delimiters become double quotes. Apostrophes inside double-quoted strings
// are left alone.
func repairQuotes(s string) string {
	runes := []rune(s)
	inDouble := false
	escaped := false

	for i, r := range runes {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			inDouble = !inDouble
		case '\'':
			if !inDouble {
				runes[i] = '"'
			}
		}
	}

	return string(runes)
}

// tryDecode parses s and requires the top-level value to be a JSON object
func tryDecode(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		return nil, false
	}
	if result == nil {
		return nil, false
	}
	return result, true
}

func preview(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= previewLimit {
		return text
	}
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
