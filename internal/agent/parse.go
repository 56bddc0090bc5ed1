package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// codeBlockPattern matches markdown code blocks with an optional language tag.
var codeBlockPattern = regexp.MustCompile(`(?s)` + "```" + `(\w*)\s*\n(.+?)\n` + "```")

// extractJSON pulls a JSON object out of a model response. Responses arrive
// in three shapes, tried in order: bare JSON, JSON inside a markdown code
// block, and JSON embedded in surrounding prose.
func extractJSON(response string) (string, error) {
	trimmed := strings.TrimSpace(response)
	if isValidJSON(trimmed) {
		return trimmed, nil
	}

	if jsonStr, ok := extractFromCodeBlock(response); ok {
		return jsonStr, nil
	}

	if jsonStr, ok := extractEmbeddedJSON(response); ok {
		return jsonStr, nil
	}

	return "", fmt.Errorf("no valid JSON object found in response")
}

// extractFromCodeBlock finds JSON in markdown code blocks, skipping blocks
// tagged as another language.
func extractFromCodeBlock(response string) (string, bool) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		if len(match) < 3 {
			continue
		}

		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}

		content := strings.TrimSpace(match[2])
		if strings.HasPrefix(content, "{") && isValidJSON(content) {
			return content, true
		}
	}
	return "", false
}

// extractEmbeddedJSON scans prose for balanced {...} candidates and returns
// the largest one that parses.
func extractEmbeddedJSON(response string) (string, bool) {
	var candidates []string
	for i := 0; i < len(response); i++ {
		if response[i] != '{' {
			continue
		}
		if obj := findMatchingBracket(response[i:]); obj != "" {
			candidates = append(candidates, obj)
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return len(candidates[a]) > len(candidates[b])
	})
	for _, c := range candidates {
		if isValidJSON(c) {
			return c, true
		}
	}
	return "", false
}

// findMatchingBracket returns the prefix of s up to the brace that balances
// s[0], respecting strings and escapes.
func findMatchingBracket(s string) string {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		if c == '{' {
			depth++
		} else if c == '}' {
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// decodeResponse extracts JSON from raw and unmarshals it into v. Failures at
// either layer become a MalformedResponseError naming the agent.
func decodeResponse(agentName, raw string, v interface{}) error {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return &MalformedResponseError{Agent: agentName, Sample: truncateSample(raw), Err: err}
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return &MalformedResponseError{Agent: agentName, Sample: truncateSample(jsonStr), Err: err}
	}
	return nil
}

// extractCode returns the code payload of a model response. Models asked for
// a whole file sometimes wrap it in a fence anyway; take the largest fenced
// block when one exists, the trimmed raw text otherwise.
func extractCode(response string) string {
	var largest string
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		if len(match) < 3 {
			continue
		}
		if len(match[2]) > len(largest) {
			largest = match[2]
		}
	}
	if largest != "" {
		return largest
	}
	return strings.TrimSpace(response)
}
