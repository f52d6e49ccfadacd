package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches a markdown code fence with an optional language tag.
var fencePattern = regexp.MustCompile(`(?s)` + "```" + `(\w*)\s*\n(.+?)\n` + "```")

// ExtractJSON pulls the first JSON value out of a model response. Models asked
// for JSON still wrap it in markdown fences or prose more often than not, so
// fenced blocks tagged json (or untagged) are tried first, then the first
// balanced object or array in the raw text.
func ExtractJSON(response string) (string, error) {
	for _, m := range fencePattern.FindAllStringSubmatch(response, -1) {
		tag := strings.ToLower(m[1])
		if tag != "" && tag != "json" {
			continue
		}
		body := strings.TrimSpace(m[2])
		if looksLikeJSON(body) && json.Valid([]byte(body)) {
			return body, nil
		}
	}

	if out, ok := firstJSONValue(response); ok {
		return out, nil
	}
	return "", fmt.Errorf("no valid JSON object found in response")
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// firstJSONValue scans for the earliest { or [ and returns the balanced value
// starting there, if it parses.
func firstJSONValue(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

	var openCh, closeCh byte = '{', '}'
	if s[start] == '[' {
		openCh, closeCh = '[', ']'
	}

	span := balancedSpan(s[start:], openCh, closeCh)
	if span != "" && json.Valid([]byte(span)) {
		return span, true
	}
	return "", false
}

// balancedSpan returns the prefix of s up to the bracket matching s[0],
// skipping brackets inside string literals. Empty when never balanced.
func balancedSpan(s string, openCh, closeCh byte) string {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
