package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var markdownJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// DecodeModelJSON parses JSON out of LLM output, which may be pure JSON,
// JSON inside a markdown code fence, or JSON surrounded by prose.
func DecodeModelJSON(input string, target interface{}) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("empty model output")
	}

	if err := json.Unmarshal([]byte(input), target); err == nil {
		return nil
	}

	if m := markdownJSON.FindStringSubmatch(input); len(m) > 1 {
		candidate := strings.TrimSpace(m[1])
		if strings.HasPrefix(candidate, "{") || strings.HasPrefix(candidate, "[") {
			if err := json.Unmarshal([]byte(candidate), target); err == nil {
				return nil
			}
		}
	}

	if extracted := firstBalancedJSON(input); extracted != "" {
		if err := json.Unmarshal([]byte(extracted), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no parseable JSON in model output: %s", Truncate(input, 100))
}

// firstBalancedJSON returns the first balanced {...} or [...] span,
// respecting string literals and escapes.
func firstBalancedJSON(input string) string {
	start := strings.IndexAny(input, "{[")
	if start < 0 {
		return ""
	}
	open := rune(input[start])
	var close rune
	if open == '{' {
		close = '}'
	} else {
		close = ']'
	}

	depth := 0
	inString := false
	escape := false
	for i, ch := range input[start:] {
		if escape {
			escape = false
			continue
		}
		switch {
		case ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return input[start : start+i+1]
			}
		}
	}
	return ""
}

// Truncate shortens s for log and error messages.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
