// Package json provides JSON extraction utilities for parsing LLM responses.
//
// A response is accepted when it is exactly one JSON object, optionally
// wrapped in a single markdown code fence. Objects embedded in prose are
// rejected.
package json

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedReply matches a reply made of one fenced code block and nothing else.
var fencedReply = regexp.MustCompile("(?s)\\A```(?:json|JSON)?[ \\t]*\\n?(.*?)\\n?[ \\t]*```\\z")

// extractJSON returns the JSON object that makes up response: either the
// whole trimmed response, or the contents of a fence that spans it.
func extractJSON(response string) (string, error) {
	trimmed := strings.TrimSpace(response)
	if isObject(trimmed) {
		return trimmed, nil
	}

	if m := fencedReply.FindStringSubmatch(trimmed); m != nil {
		if block := strings.TrimSpace(m[1]); isObject(block) {
			return block, nil
		}
	}

	preview := trimmed
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("failed to extract valid JSON from response: %q", preview)
}

// isObject reports whether s is exactly one valid JSON object.
func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

// ExtractJSONFromResponse extracts and parses a JSON object from an LLM response.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	jsonStr, err := extractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// ExtractJSON extracts the JSON object from a response string.
// Returns the raw JSON text suitable for validation or further decoding.
func ExtractJSON(response string) (string, error) {
	return extractJSON(response)
}
