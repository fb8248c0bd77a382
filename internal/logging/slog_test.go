package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextLevelsFiltered(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "text")
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	assert.NotContains(t, out, "msg=dbg")
	assert.NotContains(t, out, "msg=inf")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "c=3")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "d=4")
}

func TestNew_JSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "json").With("component", "catalogs")

	log.Info(context.Background(), "catalog synced", "catalog", "warehouses", "rows", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "catalog synced", rec["msg"])
	assert.Equal(t, "catalogs", rec["component"])
	assert.Equal(t, "warehouses", rec["catalog"])
	assert.EqualValues(t, 2, rec["rows"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestDiscard_DoesNotPanic(t *testing.T) {
	log := Discard()
	ctx := context.TODO()
	log.Debug(ctx, "x")
	log.Info(ctx, "x")
	log.Warn(ctx, "x")
	log.Error(ctx, "x")
	assert.NotNil(t, log.With("k", "v"))
}

func TestSlogLogger_WithKeepsParentUntouched(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, "info", "text")
	child := parent.With("req_id", "123")

	parent.Info(context.Background(), "parent")
	child.Info(context.Background(), "child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "req_id")
	assert.Contains(t, lines[1], "req_id=123")
}
