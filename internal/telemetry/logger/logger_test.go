package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
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

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l, closeFn, err := New(Config{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closeFn()

	l.Info("hidden")
	l.Warn("shown", "n", 1)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.Equal(t, "warn", GetLevel())

	SetLevel("debug")
	l.Debug("now visible")
	assert.Len(t, decodeLines(t, &buf), 2)
	SetLevel("info")
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Config{Level: "info", Format: "text", Output: &buf})
	require.NoError(t, err)

	l.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.log")
	var buf bytes.Buffer
	l, closeFn, err := New(Config{Level: "info", Output: &buf, File: FileConfig{Path: path, MaxSizeMB: 1}})
	require.NoError(t, err)

	l.Info("to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, buf.String(), "to file")
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Config{Level: "info", Output: &buf})
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(WithRequestID(context.Background(), "req-1"), "op")
	defer span.End()

	l.With("component", "test").InfoContext(ctx, "with ids")
	l.Info("without ids")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), lines[0]["trace_id"])
	assert.Equal(t, "test", lines[0]["component"])
	assert.NotContains(t, lines[1], "request_id")
}

func TestRedaction(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Config{Level: "info", Output: &buf})
	require.NoError(t, err)

	l.Info("creds",
		"authorization", "Bearer abc",
		"password", "hunter2",
		"jwt", "eyJhbGciOiJIUzI1NiJ9.payload.signature",
		"key", "ek-abcdefghijklmnop",
		"key_id", "01HX",
		"X-Api-Key", "guessed-key-value",
		"empty_token", "",
		"user", "u1",
	)

	m := decodeLines(t, &buf)[0]
	assert.Equal(t, redactedValue, m["authorization"])
	assert.Equal(t, redactedValue, m["password"])
	assert.Equal(t, "eyJ***ure", m["jwt"])
	assert.Equal(t, "ek-***nop", m["key"])
	assert.Equal(t, "01HX", m["key_id"])
	assert.Equal(t, redactedValue, m["X-Api-Key"], "header-named keys are dropped whatever the value")
	assert.Equal(t, "", m["empty_token"])
	assert.Equal(t, "u1", m["user"])
}

func TestRedactString(t *testing.T) {
	assert.Equal(t, "ek-***", RedactString("ek-abc"))
	assert.Equal(t, "plain", RedactString("plain"))
	assert.True(t, IsSensitiveKey("X-Api-Key"))
	assert.False(t, IsSensitiveKey("key_id"))
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("WARNING"))
	assert.False(t, ValidLevel("verbose"))
}
