// Package jsonutil extracts JSON objects out of LLM responses, which often
// arrive wrapped in markdown fences or surrounded by commentary even when a
// JSON response format was requested.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract returns the JSON-object portion of response. It tries the whole
// string first, then strips markdown code fences, then falls back to matching
// the first '{' to the last '}'.
func Extract(response string) (string, error) {
	response = stripCodeFences(response)

	var probe any
	if err := json.Unmarshal([]byte(response), &probe); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end > start {
			candidate := response[start : end+1]
			if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
				return candidate, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

// ExtractInto extracts and unmarshals in one step.
func ExtractInto(response string, out any) error {
	jsonStr, err := Extract(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

func stripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)
	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}
	return trimmed
}
