package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// ErrEmptyJSON is returned when there is nothing to parse after cleanup.
var ErrEmptyJSON = errors.New("empty JSON response")

// StripCodeFences removes an outer ```json ... ``` (or bare ```) wrapper.
func StripCodeFences(input string) string {
	cleaned := strings.TrimSpace(input)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

// RepairJSON attempts to fix common JSON errors from LLM outputs:
// missing quotes, single quotes, unclosed arrays/objects, trailing commas, comments.
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	if err := hjson.Unmarshal([]byte(hjsonData), &result); err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}

	return string(jsonBytes), nil
}

// SmartParse decodes input into target trying, in order:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
// It returns the JSON text that decoded successfully.
func SmartParse(input string, target interface{}) (string, error) {
	input = StripCodeFences(input)
	if input == "" {
		return "", ErrEmptyJSON
	}

	firstErr := json.Unmarshal([]byte(input), target)
	if firstErr == nil {
		return input, nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if err := json.Unmarshal([]byte(repaired), target); err == nil {
			return repaired, nil
		}
	}

	if hjsonResult, err := ParseHJSON(input); err == nil {
		if err := json.Unmarshal([]byte(hjsonResult), target); err == nil {
			return hjsonResult, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed: %w", firstErr)
}
