package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(h History) []string {
	out := make([]string, 0, h.Len())
	for _, t := range h.Turns() {
		out = append(out, t.Text)
	}
	return out
}

func TestMergeOrderAndLength(t *testing.T) {
	h1 := New(Instruction("price?"), Response("42"))
	h2 := New(Instruction("open orders?"), Response("none"), Instruction("own TQQQ?"))

	merged := Merge(h1, h2)

	require.Equal(t, h1.Len()+h2.Len(), merged.Len())
	assert.Equal(t, []string{"price?", "42", "open orders?", "none", "own TQQQ?"}, texts(merged))
}

func TestMergeIsNotCommutative(t *testing.T) {
	h1 := New(Instruction("a"))
	h2 := New(Instruction("b"))

	assert.Equal(t, []string{"a", "b"}, texts(Merge(h1, h2)))
	assert.Equal(t, []string{"b", "a"}, texts(Merge(h2, h1)))
}

func TestMergeIsAssociative(t *testing.T) {
	h1 := New(Instruction("a"), Response("1"))
	h2 := New(Instruction("b"))
	h3 := New(Response("2"), Instruction("c"))

	left := Merge(Merge(h1, h2), h3)
	right := Merge(h1, Merge(h2, h3))

	assert.Equal(t, texts(left), texts(right))
	assert.Equal(t, texts(left), texts(Merge(h1, h2, h3)))
}

func TestMergeKeepsDuplicates(t *testing.T) {
	h := New(Instruction("same"))
	assert.Equal(t, 2, Merge(h, h).Len())
}

func TestMergeEmpty(t *testing.T) {
	assert.True(t, Merge().IsEmpty())
	assert.True(t, Merge(History{}, History{}).IsEmpty())

	h := New(Instruction("x"))
	assert.Equal(t, texts(h), texts(Merge(History{}, h)))
}

func TestAppendDoesNotMutateReceiver(t *testing.T) {
	base := New(Instruction("a"))
	left := base.Append(Response("left"))
	right := base.Append(Response("right"))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, []string{"a", "left"}, texts(left))
	assert.Equal(t, []string{"a", "right"}, texts(right))
}

func TestTurnsReturnsCopy(t *testing.T) {
	h := New(Instruction("a"))
	turns := h.Turns()
	turns[0].Text = "changed"

	assert.Equal(t, "a", h.At(0).Text)
}

func TestTail(t *testing.T) {
	h := New(Instruction("1"), Response("2"), Instruction("3"), Response("4"))

	assert.Equal(t, []string{"3", "4"}, texts(h.Tail(2)))
	assert.Equal(t, 4, h.Tail(0).Len())
	assert.Equal(t, 4, h.Tail(10).Len())
}

func TestString(t *testing.T) {
	h := New(
		Instruction("cancel order 1"),
		Response("done", ToolActivity{Name: "cancel_order_by_id", Result: "Order 1 canceled"}),
	)

	assert.Equal(t, "[instruction] cancel order 1\n[response] done\n  -> cancel_order_by_id: Order 1 canceled", h.String())
}
