package llm

import (
	"encoding/json"
	"testing"
)

func TestRepairJSON_ValidPassesThrough(t *testing.T) {
	in := `{"a":1}`
	out, err := RepairJSON(in)
	if err != nil || out != in {
		t.Errorf("RepairJSON(%q) = %q, %v", in, out, err)
	}
}

func TestRepairJSON_SingleQuotes(t *testing.T) {
	out, err := RepairJSON(`{'mode': 'CHAT', 'reply': 'hey'}`)
	if err != nil {
		t.Fatalf("RepairJSON: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("repaired output unparseable: %v", err)
	}
	if decoded["reply"] != "hey" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestStripThink(t *testing.T) {
	in := "<think>hmm\nmultiline</think>  answer  </think>"
	if got := StripThink(in); got != "answer" {
		t.Errorf("StripThink = %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	if got := ExtractJSON("prefix {\"a\": {\"b\": 1}} suffix"); got != `{"a": {"b": 1}}` {
		t.Errorf("ExtractJSON = %q", got)
	}
	if got := ExtractJSON("no braces here"); got != "" {
		t.Errorf("ExtractJSON = %q, want empty", got)
	}
}
