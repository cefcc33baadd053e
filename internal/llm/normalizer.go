package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/avachat/internal/tools"
)

// ErrBadModelOutput marks generator output that could not be repaired into a
// usable action. Callers translate it into a "bad model response" reply.
var ErrBadModelOutput = errors.New("invalid model output")

// Action is the validated form of a generator decision. Mode is TOOL exactly
// when Tool is a registered tool other than NONE.
type Action struct {
	Mode       string                 `json:"mode"`
	Tool       string                 `json:"tool"`
	Reply      string                 `json:"reply"`
	Reason     string                 `json:"reason"`
	Parameters map[string]interface{} `json:"parameters"`
}

const (
	ModeChat = "CHAT"
	ModeTool = "TOOL"
)

// ParseAction turns raw generator text into a normalized action. It strips
// reasoning markup, parses directly, then falls back to substring extraction
// and JSON repair before giving up.
func ParseAction(raw string) (*Action, error) {
	cleaned := StripThink(raw)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		candidate := ExtractJSON(cleaned)
		if candidate == "" {
			return nil, fmt.Errorf("%w: no JSON object in output", ErrBadModelOutput)
		}
		repaired, repairErr := RepairJSON(candidate)
		if repairErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
		}
	}

	return Normalize(decoded), nil
}

// Normalize repairs an arbitrary decoded object into a valid Action. It is a
// total function: models emit placeholder unions like "CHAT|TOOL" and invent
// tool names, and every such case lands on a safe value here.
func Normalize(raw map[string]interface{}) *Action {
	action := &Action{
		Mode:   stringField(raw, "mode"),
		Tool:   stringField(raw, "tool"),
		Reply:  stringField(raw, "reply"),
		Reason: stringField(raw, "reason"),
	}

	if params, ok := raw["parameters"].(map[string]interface{}); ok {
		action.Parameters = params
	} else {
		action.Parameters = map[string]interface{}{}
	}

	if strings.Contains(action.Mode, "|") {
		action.Mode = pickCandidate(action.Mode, isAllowedMode, "")
	}
	if strings.Contains(action.Tool, "|") {
		action.Tool = pickCandidate(action.Tool, tools.IsAllowed, string(tools.None))
	}
	if !tools.IsAllowed(action.Tool) {
		action.Tool = string(tools.None)
	}

	// Tool presence always wins over a conflicting or missing mode.
	if action.Tool != string(tools.None) {
		action.Mode = ModeTool
	} else if !isAllowedMode(action.Mode) {
		action.Mode = ModeChat
	}
	if action.Mode == ModeTool && action.Tool == string(tools.None) {
		action.Mode = ModeChat
	}

	return action
}

func isAllowedMode(mode string) bool {
	return mode == ModeChat || mode == ModeTool
}

func pickCandidate(joined string, allowed func(string) bool, fallback string) string {
	for _, candidate := range strings.Split(joined, "|") {
		if allowed(candidate) {
			return candidate
		}
	}
	return fallback
}

func stringField(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}
