package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/agent/agenttest"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/coerce"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/history"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/metrics"
)

func TestBooleanStep(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"yes", true},
		{"True", true},
		{"Definitely, the market is open.", true},
		{"no", false},
		{"Not currently.", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			p := New(agenttest.Scripted(tt.answer))
			res, err := p.BooleanStep(context.Background(), "is the market open?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Value)
			assert.Equal(t, tt.answer, res.RawText)
			assert.Equal(t, 2, res.History.Len())
		})
	}
}

func TestBooleanStepUnparseable(t *testing.T) {
	m := metrics.New()
	p := New(agenttest.Scripted("The weather is nice."), WithMetrics(m))

	_, err := p.BooleanStep(context.Background(), "is the market open?")
	require.Error(t, err)
	assert.ErrorIs(t, err, coerce.ErrUnparseable)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CoercionFailures.WithLabelValues("bool")))
}

func TestBoolConverter(t *testing.T) {
	main := agenttest.Scripted("The market appears to be trading normally today.")
	converter := agenttest.Scripted("yes")
	p := New(main, WithBoolConverter(converter))

	res, err := p.BooleanStep(context.Background(), "is the market open?")
	require.NoError(t, err)
	assert.True(t, res.Value)
	assert.Equal(t, "The market appears to be trading normally today.", res.RawText)

	calls := converter.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Instruction, "trading normally")
	require.NotNil(t, calls[0].Prior)
	assert.True(t, calls[0].Prior.IsEmpty())
}

func TestIntAndFloatSteps(t *testing.T) {
	p := New(agenttest.Scripted("You hold 12 shares.", "The price is $195.42."))

	n, err := p.IntStep(context.Background(), "how many shares?")
	require.NoError(t, err)
	assert.Equal(t, 12, n.Value)

	f, err := p.FloatStep(context.Background(), "what is the price?")
	require.NoError(t, err)
	assert.InDelta(t, 195.42, f.Value, 1e-9)
	assert.Equal(t, 2, p.Executed())
}

func TestIntStepRejectsFraction(t *testing.T) {
	p := New(agenttest.Scripted("about 2.5 shares"))
	_, err := p.IntStep(context.Background(), "how many shares?")
	assert.ErrorIs(t, err, coerce.ErrUnparseable)
}

func TestStepThreadsHistory(t *testing.T) {
	a := agenttest.Scripted("first", "second")
	p := New(a)

	_, h1, err := p.Step(context.Background(), "one")
	require.NoError(t, err)

	_, h2, err := p.Step(context.Background(), "two", WithHistory(history.New()))
	require.NoError(t, err)
	assert.Equal(t, 2, h1.Len())
	assert.Equal(t, 2, h2.Len())

	calls := a.Calls()
	assert.Nil(t, calls[0].Prior)
	require.NotNil(t, calls[1].Prior)
	assert.True(t, calls[1].Prior.IsEmpty())
}

func TestIfStepThenBranch(t *testing.T) {
	a := agenttest.Rules(
		agenttest.Rule{Contains: "market open", Answer: "yes"},
		agenttest.Rule{Contains: "buy", Answer: "bought"},
		agenttest.Rule{Contains: "report", Answer: "reported"},
		agenttest.Rule{Contains: "wait", Answer: "waiting"},
	)
	p := New(a)

	err := p.IfStep(context.Background(), "is the market open?",
		Steps("buy 1 AAPL", "report portfolio"),
		Steps("wait"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"is the market open?", "buy 1 AAPL", "report portfolio"}, a.Instructions())
	assert.Equal(t, 0, a.Count("wait"))
}

func TestIfStepElseBranch(t *testing.T) {
	a := agenttest.Rules(
		agenttest.Rule{Contains: "market open", Answer: "No, it is closed."},
		agenttest.Rule{Contains: "buy", Answer: "bought"},
		agenttest.Rule{Contains: "wait", Answer: "waiting"},
	)
	p := New(a)

	require.NoError(t, p.IfStep(context.Background(), "is the market open?", Steps("buy 1 AAPL"), Steps("wait")))
	assert.Equal(t, 0, a.Count("buy"))
	assert.Equal(t, 1, a.Count("wait"))
}

func TestIfStepEmptyBranch(t *testing.T) {
	a := agenttest.Scripted("no")
	p := New(a)
	require.NoError(t, p.IfStep(context.Background(), "anything to do?", Steps("act"), nil))
	assert.Len(t, a.Calls(), 1)
}

func TestIfStepHistoryAppliesToBranches(t *testing.T) {
	a := agenttest.Scripted("yes", "done", "done")
	p := New(a)
	base := history.New(history.Instruction("context"), history.Response("ok"))

	require.NoError(t, p.IfStep(context.Background(), "go?", Steps("a", "b"), nil, WithHistory(base)))

	for _, c := range a.Calls() {
		require.NotNil(t, c.Prior)
		assert.Equal(t, 2, c.Prior.Len())
	}
}

func TestIfStepConditionError(t *testing.T) {
	a := agenttest.Func(func(string) (string, error) { return "", errors.New("model down") })
	p := New(a)
	err := p.IfStep(context.Background(), "go?", Steps("a"), Steps("b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model down")
	assert.Len(t, a.Calls(), 1)
}

func TestRunNestedTree(t *testing.T) {
	a := agenttest.Rules(
		agenttest.Rule{Contains: "open?", Answer: "yes"},
		agenttest.Rule{Contains: "holding?", Answer: "no"},
		agenttest.Rule{Contains: "buy", Answer: "bought"},
		agenttest.Rule{Contains: "sell", Answer: "sold"},
		agenttest.Rule{Contains: "summary", Answer: "fine"},
	)
	tree := Sequence{
		If("market open?",
			If("holding?", Do("sell"), Do("buy")),
			nil,
		),
		Do("summary"),
	}
	p := New(a)

	require.NoError(t, p.Run(context.Background(), tree))
	assert.Equal(t, []string{"market open?", "holding?", "buy", "summary"}, a.Instructions())
	assert.Equal(t, 8, p.Transcript().Len())
}

func TestRunStopsOnError(t *testing.T) {
	a := agenttest.Scripted("ok")
	p := New(a)
	err := p.Run(context.Background(), Sequence{Do("one"), Do("two"), Do("three")})
	require.Error(t, err)
	assert.Len(t, a.Calls(), 2)
}

func TestStepAgentOverride(t *testing.T) {
	main := agenttest.Scripted()
	other := agenttest.Scripted("from other")
	p := New(main)

	text, _, err := p.Step(context.Background(), "hello", WithAgent(other))
	require.NoError(t, err)
	assert.Equal(t, "from other", text)
	assert.Empty(t, main.Calls())
}

func TestNoAgent(t *testing.T) {
	_, _, err := New(nil).Step(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoAgent)
}

func TestSummarizeFullHistory(t *testing.T) {
	a := agenttest.Scripted("one", "two", "summary")
	p := New(a)
	_, _, err := p.Step(context.Background(), "first")
	require.NoError(t, err)
	_, _, err = p.Step(context.Background(), "second")
	require.NoError(t, err)

	text, _, err := p.SummarizeFullHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "summary", text)

	last := a.Calls()[2]
	require.NotNil(t, last.Prior)
	assert.Equal(t, 4, last.Prior.Len())
}

func TestBranchMetrics(t *testing.T) {
	m := metrics.New()
	p := New(agenttest.Scripted("yes", "done"), WithMetrics(m))
	require.NoError(t, p.IfStep(context.Background(), "go?", Steps("act"), nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Branches.WithLabelValues("then")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Steps.WithLabelValues("bool", "success")))
}

func TestDescribe(t *testing.T) {
	tree := Sequence{
		If("market open?", Do("buy"), nil),
		Leaf{Step: NewStep("price?"), Kind: KindFloat},
	}
	want := "if market open?\n" +
		"  then:\n" +
		"    - [text] buy\n" +
		"  else:\n" +
		"    (nothing)\n" +
		"- [float] price?"
	assert.Equal(t, want, Describe(tree))

	leaves, conds := Count(tree)
	assert.Equal(t, 2, leaves)
	assert.Equal(t, 1, conds)
}
