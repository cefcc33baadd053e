// Package tools defines the tool surface the reply generator may invoke and
// the executors for tools with real side effects.
package tools

import (
	"fmt"
	"strings"
)

// Name identifies a tool in generator output.
type Name string

const (
	OrderFood      Name = "ORDER_FOOD"
	BookTaxi       Name = "BOOK_TAXI"
	CreateNote     Name = "CREATE_NOTE"
	CreateReminder Name = "CREATE_REMINDER"
	// None marks plain conversation, no tool requested.
	None Name = "NONE"
)

// Param describes a single tool parameter for prompt generation.
type Param struct {
	Name     string
	Optional bool
}

// Definition describes a tool for the generator prompt and the allow-list.
type Definition struct {
	Name        Name
	Description string
	Params      []Param
	// ShowInPrompt hides in-development tools from the prompt while keeping
	// them executable if the model returns them anyway.
	ShowInPrompt bool
}

var registry = []Definition{
	{
		Name:        OrderFood,
		Description: "Help the user choose and place a food order.",
		Params: []Param{
			{Name: "cuisine"}, {Name: "items"}, {Name: "address"},
			{Name: "notes", Optional: true},
		},
		ShowInPrompt: true,
	},
	{
		Name:        BookTaxi,
		Description: "Book or plan a taxi/ride for the user.",
		Params: []Param{
			{Name: "pickup"}, {Name: "destination"}, {Name: "time"},
			{Name: "passengers"}, {Name: "notes", Optional: true},
		},
		ShowInPrompt: true,
	},
	{
		Name:        CreateNote,
		Description: "Create a note for the user.",
		Params:      []Param{{Name: "title"}, {Name: "content"}},
		ShowInPrompt: true,
	},
	{
		Name:        CreateReminder,
		Description: "Create a reminder for the user.",
		Params: []Param{
			{Name: "content"}, {Name: "due_at"},
		},
		ShowInPrompt: true,
	},
}

// All returns every registered tool definition.
func All() []Definition {
	return registry
}

// IsAllowed reports whether name is a registered tool or NONE. Anything the
// generator invents gets rejected here.
func IsAllowed(name string) bool {
	if Name(name) == None {
		return true
	}
	for _, def := range registry {
		if string(def.Name) == name {
			return true
		}
	}
	return false
}

// PromptBlock renders the visible tools as a prompt fragment.
func PromptBlock() string {
	var b strings.Builder
	for _, def := range registry {
		if !def.ShowInPrompt {
			continue
		}
		fields := make([]string, 0, len(def.Params))
		for _, p := range def.Params {
			if p.Optional {
				fields = append(fields, p.Name+" (optional)")
				continue
			}
			fields = append(fields, p.Name)
		}
		params := "(none)"
		if len(fields) > 0 {
			params = strings.Join(fields, ", ")
		}
		fmt.Fprintf(&b, "- %s: %s\n  params: %s\n", def.Name, def.Description, params)
	}
	return strings.TrimRight(b.String(), "\n")
}
