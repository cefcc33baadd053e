package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// RepairJSON attempts to recover a parseable document from malformed model
// output. Strategies in order:
//  1. Parse as-is
//  2. Remove trailing commas
//  3. Use the jsonrepair library as sophisticated fallback
func RepairJSON(raw string) (string, error) {
	var probe interface{}
	if json.Unmarshal([]byte(raw), &probe) == nil {
		return raw, nil
	}

	repaired := trailingCommaRe.ReplaceAllString(raw, "$1")
	if json.Unmarshal([]byte(repaired), &probe) == nil {
		return repaired, nil
	}

	repaired, err := jsonrepair.JSONRepair(repaired)
	if err != nil {
		return "", fmt.Errorf("failed to repair JSON: %w", err)
	}
	if json.Unmarshal([]byte(repaired), &probe) != nil {
		return "", fmt.Errorf("repaired JSON still unparseable")
	}
	return repaired, nil
}

var thinkRe = regexp.MustCompile(`(?is)<think>.*?</think>`)
var strayThinkCloseRe = regexp.MustCompile(`(?i)</think>`)

// StripThink removes reasoning blocks some models emit before their answer.
func StripThink(text string) string {
	text = thinkRe.ReplaceAllString(text, "")
	text = strayThinkCloseRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ExtractJSON pulls the first JSON-object-looking substring out of mixed
// prose and code fences. Returns "" when nothing object-shaped is present.
func ExtractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return text[start : end+1]
}
