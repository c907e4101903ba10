package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, false, slog.LevelInfo))
	logger.Debug("dropped")
	logger.Info("kept", slog.String("address", "test@iana.org"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "test@iana.org", rec["address"])
}

func TestNewHandlerTint(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, true, slog.LevelDebug))
	logger.Debug("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestDiscard(t *testing.T) {
	d := Discard()
	assert.False(t, d.Enabled(context.Background(), slog.LevelError))
	assert.False(t, d.With("k", "v").WithGroup("g").Enabled(context.Background(), slog.LevelError))
	assert.Same(t, d, OrDiscard(nil))
	l := slog.Default()
	assert.Same(t, l, OrDiscard(l))
}
