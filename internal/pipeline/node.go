package pipeline

import (
	"fmt"
	"strings"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
)

// Step is one instruction for an agent. A nil Context means the agent's own
// running session; a nil Agent means the pipeline's agent.
type Step struct {
	Instruction string
	Context     *history.History
	Agent       interfaces.Agent
}

func NewStep(instruction string) Step {
	return Step{Instruction: instruction}
}

// WithContext returns a copy of s that runs on top of h.
func (s Step) WithContext(h history.History) Step {
	s.Context = &h
	return s
}

// WithAgent returns a copy of s that targets a.
func (s Step) WithAgent(a interfaces.Agent) Step {
	s.Agent = a
	return s
}

// Steps turns plain instructions into steps.
func Steps(instructions ...string) []Step {
	out := make([]Step, len(instructions))
	for i, in := range instructions {
		out[i] = NewStep(in)
	}
	return out
}

// Kind selects how a leaf's answer is interpreted.
type Kind string

const (
	KindText  Kind = "text"
	KindBool  Kind = "bool"
	KindInt   Kind = "int"
	KindFloat Kind = "float"
)

// Node is an element of an instruction tree. The tree is plain data: it can
// be rendered or inspected without calling any agent.
type Node interface {
	isNode()
}

// Leaf issues one step and interprets the answer as Kind (text by default).
type Leaf struct {
	Step Step
	Kind Kind
}

// Sequence runs its nodes in order.
type Sequence []Node

// Conditional evaluates Condition as a boolean step and runs exactly one of
// Then or Else. Either branch may be nil.
type Conditional struct {
	Condition Step
	Then      Node
	Else      Node
}

func (Leaf) isNode()        {}
func (Sequence) isNode()    {}
func (Conditional) isNode() {}

// Do is a text leaf.
func Do(instruction string) Leaf {
	return Leaf{Step: NewStep(instruction), Kind: KindText}
}

// Seq wraps steps into a sequence of text leaves.
func Seq(steps ...Step) Sequence {
	out := make(Sequence, len(steps))
	for i, s := range steps {
		out[i] = Leaf{Step: s, Kind: KindText}
	}
	return out
}

// If builds a conditional on a plain instruction.
func If(condition string, then, els Node) Conditional {
	return Conditional{Condition: NewStep(condition), Then: then, Else: els}
}

// Describe renders a tree as an indented outline without executing it.
func Describe(n Node) string {
	var b strings.Builder
	describe(&b, n, 0)
	return strings.TrimRight(b.String(), "\n")
}

func describe(b *strings.Builder, n Node, depth int) {
	pad := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case nil:
		fmt.Fprintf(b, "%s(nothing)\n", pad)
	case Leaf:
		kind := v.Kind
		if kind == "" {
			kind = KindText
		}
		fmt.Fprintf(b, "%s- [%s] %s\n", pad, kind, v.Step.Instruction)
	case Sequence:
		if len(v) == 0 {
			fmt.Fprintf(b, "%s(nothing)\n", pad)
		}
		for _, child := range v {
			describe(b, child, depth)
		}
	case Conditional:
		fmt.Fprintf(b, "%sif %s\n", pad, v.Condition.Instruction)
		fmt.Fprintf(b, "%s  then:\n", pad)
		describe(b, v.Then, depth+2)
		fmt.Fprintf(b, "%s  else:\n", pad)
		describe(b, v.Else, depth+2)
	default:
		fmt.Fprintf(b, "%s? %T\n", pad, n)
	}
}

// Count reports how many leaves and conditions a tree holds.
func Count(n Node) (leaves, conditions int) {
	switch v := n.(type) {
	case Leaf:
		return 1, 0
	case Sequence:
		for _, child := range v {
			l, c := Count(child)
			leaves += l
			conditions += c
		}
	case Conditional:
		l1, c1 := Count(v.Then)
		l2, c2 := Count(v.Else)
		return l1 + l2, c1 + c2 + 1
	}
	return leaves, conditions
}
