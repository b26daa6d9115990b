package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(LogConfig{Level: "INFO", Format: "json"}, &buf))

	ctx := context.Background()
	Info(ctx, "hello", "symbol", "TQQQ")
	ErrorWithErr(ctx, "boom", errors.New("broker down"), "run", 3)
	Debug(ctx, "hidden")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "hello", lines[0]["msg"])
	assert.Equal(t, "TQQQ", lines[0]["symbol"])
	assert.Equal(t, "broker down", lines[1]["error"])
	assert.Equal(t, float64(3), lines[1]["run"])
}

func TestDetailedLoggingAddsSource(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(LogConfig{Level: "DEBUG", Format: "json", DetailedLogging: true}, &buf))
	t.Cleanup(func() { _ = InitWithWriter(LogConfig{Level: "INFO", Format: "json"}, &bytes.Buffer{}) })

	Debug(context.Background(), "visible")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	source, ok := lines[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source["file"], "logger_test.go")
}

func TestSkipReportsWrapperCaller(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(LogConfig{Level: "INFO", Format: "json", DetailedLogging: true}, &buf))
	t.Cleanup(func() { _ = InitWithWriter(LogConfig{Level: "INFO", Format: "json"}, &bytes.Buffer{}) })

	wrapper := func() { InfoSkip(context.Background(), 1, "wrapped") }
	wrapper()

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	source := lines[0]["source"].(map[string]any)
	assert.Contains(t, source["function"], "TestSkipReportsWrapperCaller")
}

func TestRotatingFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "investor.log")
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(LogConfig{Level: "INFO", Format: "text", File: path, MaxSizeMB: 1}, &buf))

	Warn(context.Background(), "to both sinks")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, buf.String(), "to both sinks")
}

func TestOrderEvent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(LogConfig{Level: "INFO", Format: "json"}, &buf))

	Order(context.Background(), "TQQQ", "buy", "100", "SIM-1")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "ORDER", lines[0]["type"])
	assert.Equal(t, "SIM-1", lines[0]["order_id"])
}

func TestOperationTimer(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(LogConfig{Level: "DEBUG", Format: "json", DetailedLogging: true}, &buf))
	t.Cleanup(func() { _ = InitWithWriter(LogConfig{Level: "INFO", Format: "json"}, &bytes.Buffer{}) })

	op := StartOperation(context.Background(), "pipeline.Step", "kind", "bool")
	require.NotNil(t, op.GetContext())
	d := op.EndWithError(errors.New("no decisive word"), "answer", "maybe")
	assert.GreaterOrEqual(t, int64(d), int64(0))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "Operation started", lines[0]["msg"])
	assert.Equal(t, "pipeline.Step", lines[0]["operation"])
	assert.Equal(t, "Operation failed", lines[1]["msg"])
	assert.Equal(t, "DEBUG", lines[1]["level"])
	assert.Equal(t, "no decisive word", lines[1]["error"])
	assert.Equal(t, "bool", lines[1]["kind"])
	assert.Equal(t, "maybe", lines[1]["answer"])
}

func TestOperationTimerQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithWriter(LogConfig{Level: "INFO", Format: "json"}, &buf))

	op := StartOperation(context.Background(), "runloop.Run", "run", 1)
	op.End("steps", 3)
	op = StartOperation(context.Background(), "runloop.Run", "run", 2)
	op.EndWithError(errors.New("model down"))

	assert.Empty(t, strings.TrimSpace(buf.String()))
}
