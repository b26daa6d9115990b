package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/broker/sim"
	"github.com/GeminiAgentsToolkit/investor-agent/internal/tools"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	paper := sim.New(sim.Params{
		Environment: broker.Paper,
		Cash:        decimal.NewFromInt(2500),
		Prices:      map[string]float64{"AAPL": 190},
	})
	session := broker.NewSession(func(broker.Environment) (broker.Client, error) { return paper, nil }, broker.Paper)
	s, err := New(tools.Catalogue(tools.Deps{Session: session}), "test")
	require.NoError(t, err)
	return s
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", res.Content[0])
	return ""
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func TestToolResult(t *testing.T) {
	s := newServer(t)

	res, err := s.handler("get_account_equity")(context.Background(), call("get_account_equity", nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "$2500.00", text(t, res))
}

func TestToolErrorIsResult(t *testing.T) {
	s := newServer(t)

	res, err := s.handler("buy_option_by_market_price")(context.Background(), call("buy_option_by_market_price", map[string]any{
		"underlying": "AAPL", "expiration": "2099-01-15", "option_type": "Z", "strike": 100, "qty": 1,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Invalid option type: should be 'C' (Call) or 'P' (Put)", text(t, res))
}

func TestListTools(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	s.MCP().HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`))
	resp := s.MCP().HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"buy_stock_by_market_price"`)
	assert.Contains(t, string(raw), `"get_portfolio"`)
	assert.Contains(t, string(raw), `"limit_price"`)
}
