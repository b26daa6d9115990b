// Package history models the conversational context threaded through
// pipeline steps. A History is an ordered, append-only list of turns.
package history

import (
	"fmt"
	"strings"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleInstruction Role = "instruction"
	RoleResponse    Role = "response"
)

// ToolActivity records one tool invocation made while producing a response.
type ToolActivity struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result"`
	IsError   bool           `json:"is_error,omitempty"`
}

// Turn is a single entry of a History.
type Turn struct {
	Role  Role           `json:"role"`
	Text  string         `json:"text"`
	Tools []ToolActivity `json:"tools,omitempty"`
}

// History is an immutable value. Append and Merge return new histories and
// never modify their operands, so a History can be shared between steps.
type History struct {
	turns []Turn
}

// New builds a history from turns in the given order.
func New(turns ...Turn) History {
	if len(turns) == 0 {
		return History{}
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return History{turns: out}
}

// Instruction is shorthand for an instruction turn.
func Instruction(text string) Turn {
	return Turn{Role: RoleInstruction, Text: text}
}

// Response is shorthand for a response turn.
func Response(text string, tools ...ToolActivity) Turn {
	return Turn{Role: RoleResponse, Text: text, Tools: tools}
}

func (h History) Len() int {
	return len(h.turns)
}

func (h History) IsEmpty() bool {
	return len(h.turns) == 0
}

// Turns returns a copy of the turns in order.
func (h History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// At returns the i-th turn.
func (h History) At(i int) Turn {
	return h.turns[i]
}

// Last returns the final turn, if any.
func (h History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}

// Append returns a new history with turns added after the existing ones.
func (h History) Append(turns ...Turn) History {
	out := make([]Turn, 0, len(h.turns)+len(turns))
	out = append(out, h.turns...)
	out = append(out, turns...)
	return History{turns: out}
}

// Tail returns the last n turns. n <= 0 returns the full history.
func (h History) Tail(n int) History {
	if n <= 0 || n >= len(h.turns) {
		return h
	}
	return New(h.turns[len(h.turns)-n:]...)
}

// Merge concatenates histories in argument order. Every turn of hs[0]
// precedes every turn of hs[1], and so on; the relative order inside each
// operand is kept. Duplicated or contradictory turns are not reconciled.
func Merge(hs ...History) History {
	n := 0
	for _, h := range hs {
		n += len(h.turns)
	}
	if n == 0 {
		return History{}
	}
	out := make([]Turn, 0, n)
	for _, h := range hs {
		out = append(out, h.turns...)
	}
	return History{turns: out}
}

// String renders the history as a plain transcript, one turn per block.
func (h History) String() string {
	var b strings.Builder
	for i, t := range h.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s", t.Role, t.Text)
		for _, tool := range t.Tools {
			fmt.Fprintf(&b, "\n  -> %s: %s", tool.Name, tool.Result)
		}
	}
	return b.String()
}
