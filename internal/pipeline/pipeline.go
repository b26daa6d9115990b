// Package pipeline drives an agent through instruction trees.
//
// There is one interpreter (Run). The batched style builds a tree of
// Sequence, Conditional and Leaf nodes and hands it to Run; the eager style
// (Step, BooleanStep, IntStep, FloatStep) wraps a single Leaf and runs it
// immediately so host code can branch and compute between steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/coerce"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/interfaces"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/logger"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
)

var ErrNoAgent = errors.New("pipeline: no agent for step")

const convertToBoolPrompt = `Classify the following answer as a plain yes or no.
Reply with exactly one word: "yes" or "no".

Answer: %s`

const summarizePrompt = `Summarize everything that happened in this session: what was checked, which orders were placed, changed or canceled, and the resulting state of the account. Keep it short.`

// Result is a typed answer. Value is derived from RawText only.
type Result[T bool | int | float64] struct {
	Value   T
	RawText string
	History history.History
}

type Pipeline struct {
	agent     interfaces.Agent
	converter interfaces.Agent
	metrics   *metrics.Metrics

	transcript history.History
	executed   int
}

type Option func(*Pipeline)

// WithBoolConverter routes every boolean answer through a second agent
// asked for a strict yes/no before coercion.
func WithBoolConverter(a interfaces.Agent) Option {
	return func(p *Pipeline) { p.converter = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(agent interfaces.Agent, opts ...Option) *Pipeline {
	p := &Pipeline{agent: agent}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CallOption adjusts one eager call or IfStep.
type CallOption func(*callConfig)

type callConfig struct {
	history *history.History
	agent   interfaces.Agent
}

// WithHistory runs the call on top of h instead of the agent session.
func WithHistory(h history.History) CallOption {
	return func(c *callConfig) { c.history = &h }
}

// WithAgent sends the call to a instead of the pipeline's agent.
func WithAgent(a interfaces.Agent) CallOption {
	return func(c *callConfig) { c.agent = a }
}

func (p *Pipeline) stepFor(instruction string, opts []CallOption) Step {
	var c callConfig
	for _, opt := range opts {
		opt(&c)
	}
	return Step{Instruction: instruction, Context: c.history, Agent: c.agent}
}

// outcome is what interpreting a node yields: the last leaf's answer.
type outcome struct {
	text    string
	history history.History
	b       bool
	i       int
	f       float64
}

// Step sends an instruction and returns the answer with the updated history.
func (p *Pipeline) Step(ctx context.Context, instruction string, opts ...CallOption) (string, history.History, error) {
	out, err := p.eval(ctx, Leaf{Step: p.stepFor(instruction, opts), Kind: KindText})
	if err != nil {
		return "", history.History{}, err
	}
	return out.text, out.history, nil
}

func (p *Pipeline) BooleanStep(ctx context.Context, instruction string, opts ...CallOption) (Result[bool], error) {
	out, err := p.eval(ctx, Leaf{Step: p.stepFor(instruction, opts), Kind: KindBool})
	if err != nil {
		return Result[bool]{}, err
	}
	return Result[bool]{Value: out.b, RawText: out.text, History: out.history}, nil
}

func (p *Pipeline) IntStep(ctx context.Context, instruction string, opts ...CallOption) (Result[int], error) {
	out, err := p.eval(ctx, Leaf{Step: p.stepFor(instruction, opts), Kind: KindInt})
	if err != nil {
		return Result[int]{}, err
	}
	return Result[int]{Value: out.i, RawText: out.text, History: out.history}, nil
}

func (p *Pipeline) FloatStep(ctx context.Context, instruction string, opts ...CallOption) (Result[float64], error) {
	out, err := p.eval(ctx, Leaf{Step: p.stepFor(instruction, opts), Kind: KindFloat})
	if err != nil {
		return Result[float64]{}, err
	}
	return Result[float64]{Value: out.f, RawText: out.text, History: out.history}, nil
}

// IfStep evaluates condition and runs then or els in list order. The
// history and agent options apply to the condition and to every branch
// step that does not carry its own; branch steps are not chained to each
// other.
func (p *Pipeline) IfStep(ctx context.Context, condition string, then, els []Step, opts ...CallOption) error {
	cond := p.stepFor(condition, opts)
	return p.Run(ctx, Conditional{
		Condition: cond,
		Then:      Seq(inherit(then, cond)...),
		Else:      Seq(inherit(els, cond)...),
	})
}

func inherit(steps []Step, from Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		if s.Context == nil {
			s.Context = from.Context
		}
		if s.Agent == nil {
			s.Agent = from.Agent
		}
		out[i] = s
	}
	return out
}

// Run interprets a tree.
func (p *Pipeline) Run(ctx context.Context, n Node) error {
	_, err := p.eval(ctx, n)
	return err
}

func (p *Pipeline) eval(ctx context.Context, n Node) (outcome, error) {
	switch v := n.(type) {
	case nil:
		return outcome{}, nil
	case Leaf:
		return p.leaf(ctx, v)
	case Sequence:
		var last outcome
		for _, child := range v {
			out, err := p.eval(ctx, child)
			if err != nil {
				return outcome{}, err
			}
			last = out
		}
		return last, nil
	case Conditional:
		cond, err := p.leaf(ctx, Leaf{Step: v.Condition, Kind: KindBool})
		if err != nil {
			return outcome{}, err
		}
		logger.Branch(ctx, v.Condition.Instruction, cond.b, "answer", clip(cond.text))
		p.metrics.ObserveBranch(cond.b)
		if cond.b {
			return p.eval(ctx, v.Then)
		}
		return p.eval(ctx, v.Else)
	default:
		return outcome{}, fmt.Errorf("pipeline: unknown node %T", n)
	}
}

func (p *Pipeline) leaf(ctx context.Context, l Leaf) (outcome, error) {
	kind := l.Kind
	if kind == "" {
		kind = KindText
	}
	agent := l.Step.Agent
	if agent == nil {
		agent = p.agent
	}
	if agent == nil {
		return outcome{}, fmt.Errorf("%w: %q", ErrNoAgent, clip(l.Step.Instruction))
	}

	op := logger.StartOperation(ctx, "pipeline.Step", "kind", string(kind))
	ctx = op.GetContext()

	text, h, err := agent.Resolve(ctx, l.Step.Instruction, l.Step.Context)
	if err != nil {
		p.metrics.ObserveStep(string(kind), op.EndWithError(err), err)
		return outcome{}, fmt.Errorf("step %q: %w", clip(l.Step.Instruction), err)
	}
	p.record(h)

	out := outcome{text: text, history: h}
	switch kind {
	case KindBool:
		out.b, err = p.toBool(ctx, text)
	case KindInt:
		out.i, err = coerce.Int(text)
	case KindFloat:
		out.f, err = coerce.Float(text)
	}
	if err != nil {
		p.metrics.ObserveStep(string(kind), op.EndWithError(err), err)
		p.metrics.ObserveCoercionFailure(string(kind))
		return outcome{}, fmt.Errorf("%s step %q: %w", kind, clip(l.Step.Instruction), err)
	}
	d := op.End("answer", clip(text))
	p.metrics.ObserveStep(string(kind), d, nil)

	p.executed++
	logger.Info(ctx, "Step completed",
		"kind", string(kind),
		"instruction", clip(l.Step.Instruction),
		"answer", clip(text),
		"duration_ms", d.Milliseconds(),
	)
	return out, nil
}

func (p *Pipeline) toBool(ctx context.Context, text string) (bool, error) {
	if p.converter == nil {
		return coerce.Bool(text)
	}
	empty := history.History{}
	answer, _, err := p.converter.Resolve(ctx, fmt.Sprintf(convertToBoolPrompt, text), &empty)
	if err != nil {
		return false, fmt.Errorf("convert to bool: %w", err)
	}
	return coerce.Bool(answer)
}

// record appends the instruction and response of the latest exchange to
// the run transcript.
func (p *Pipeline) record(h history.History) {
	if h.Len() >= 2 {
		p.transcript = p.transcript.Append(h.At(h.Len()-2), h.At(h.Len()-1))
	}
}

// Transcript returns every exchange executed by this pipeline, in order.
func (p *Pipeline) Transcript() history.History {
	return p.transcript
}

// Executed reports how many steps completed successfully.
func (p *Pipeline) Executed() int {
	return p.executed
}

// SummarizeFullHistory asks the agent to summarize the run transcript.
func (p *Pipeline) SummarizeFullHistory(ctx context.Context) (string, history.History, error) {
	return p.Step(ctx, summarizePrompt, WithHistory(p.transcript))
}

func clip(s string) string {
	const n = 160
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
