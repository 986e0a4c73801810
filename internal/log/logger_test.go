package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Output: buf, Component: ComponentLedger})
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestLogger_ContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf)

	ctx := WithUserID(WithRequestID(context.Background(), "req-1"), "u-1")
	logger.InfoContext(ctx, "balance updated", "account_id", "bank-1")

	rec := lastRecord(t, &buf)
	assert.Equal(t, "req-1", rec[FieldRequestID])
	assert.Equal(t, "u-1", rec[FieldUserID])
	assert.Equal(t, ComponentLedger, rec[FieldComponent])
	assert.Equal(t, "bank-1", rec["account_id"])

	logger.With("scope", "test").Info("no context")
	rec = lastRecord(t, &buf)
	assert.NotContains(t, rec, FieldRequestID)
	assert.Equal(t, "test", rec["scope"])
}

func TestNew_DoesNotWrapTwice(t *testing.T) {
	var buf bytes.Buffer
	first := jsonLogger(&buf)
	second := New(Config{Handler: first.Handler(), Component: ComponentWorker})

	second.InfoContext(WithRequestID(context.Background(), "req-2"), "once")
	assert.Equal(t, 1, strings.Count(buf.String(), `"request_id"`))
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, ComponentApp, FromContext(context.Background()).Component())

	var buf bytes.Buffer
	logger := jsonLogger(&buf)
	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Same(t, logger, got)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLogFields_ToSliceIsSorted(t *testing.T) {
	got := NewFields().WithOperation(OpCreate).WithComponent(ComponentHTTP).WithError(nil).ToSlice()
	assert.Equal(t, []any{FieldComponent, ComponentHTTP, FieldOperation, OpCreate}, got)
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(jsonLogger(&buf))
	ctx := context.Background()

	sl.LogTransaction(ctx, OpCreate, "u-1", "tx-1", 1250, "EXPENSE")
	rec := lastRecord(t, &buf)
	assert.Equal(t, "u-1", rec[FieldUserID])
	assert.Equal(t, float64(1250), rec[FieldAmountCents])

	sl.LogTransaction(WithUserID(ctx, "u-1"), OpUpdate, "u-1", "tx-1", 1, "INCOME")
	assert.Equal(t, 1, strings.Count(strings.Split(strings.TrimSpace(buf.String()), "\n")[1], `"user_id"`))

	sl.LogError(ctx, "failed", errors.New("boom"), ComponentHTTP, OpRead, nil)
	rec = lastRecord(t, &buf)
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "boom", rec[FieldError])
}
