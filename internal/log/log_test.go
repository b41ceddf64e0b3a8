package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer, level slog.Level) *Logger {
	return New(Config{Level: level, Format: "json", Output: buf, Component: ComponentHTTP})
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo)

	logger.Info("hello", FieldPath, "/x")
	rec := decode(t, &buf)
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, ComponentHTTP, rec[FieldComponent])
	assert.Equal(t, "/x", rec[FieldPath])

	buf.Reset()
	logger.WithComponent(ComponentSession).With(FieldSessionID, "abc").Warn("moved")
	rec = decode(t, &buf)
	assert.Equal(t, ComponentSession, rec[FieldComponent])
	assert.Equal(t, "abc", rec[FieldSessionID])
	assert.Equal(t, ComponentHTTP, logger.Component(), "parent unchanged")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelWarn)
	logger.Info("dropped")
	logger.Debug("dropped")
	assert.Zero(t, buf.Len())
	logger.Error("kept")
	assert.NotZero(t, buf.Len())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() { Discard().Error("nothing to see") })
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, slog.LevelInfo)
	ctx := IntoContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))

	fallback := FromContext(context.Background())
	require.NotNil(t, fallback)
	assert.Equal(t, "unknown", fallback.Component())
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf, slog.LevelInfo))
	ctx := context.Background()

	sl.LogTransaction(ctx, OpCreate, "tx-1", "Groceries", "-50")
	rec := decode(t, &buf)
	assert.Equal(t, "Transaction create succeeded", rec["msg"])
	assert.Equal(t, "tx-1", rec[FieldTxID])
	assert.Equal(t, "-50", rec[FieldAmount])
	assert.Equal(t, ComponentGateway, rec[FieldComponent])

	buf.Reset()
	sl.LogError(ctx, "Export failed", errors.New("quota"), ComponentExport, OpExport,
		NewFields().WithUser("u1", "").WithCount(3))
	rec = decode(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "quota", rec[FieldError])
	assert.Equal(t, OpExport, rec[FieldOperation])
	assert.Equal(t, "u1", rec[FieldUserID])
	assert.NotContains(t, rec, FieldUsername)
	assert.Equal(t, float64(3), rec[FieldCount])
}
