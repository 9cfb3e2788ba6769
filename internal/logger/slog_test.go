package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizmarket/wizapp/internal/logger"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, logger.LevelTrace, logger.ParseLevel("trace"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("loud"))
}

func TestNew_AutoIsJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{Level: "debug", Out: &buf})

	l.Debug("from web", "type", "WEB_READY")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "from web", line["msg"])
	assert.Equal(t, "WEB_READY", line["type"])
}

func TestNew_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{Level: "warn", Format: "text", Out: &buf})

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestNativeLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(logger.Options{Level: "trace", Format: "text", Out: &buf})
	n := logger.NewNative(context.Background(), l)

	n.Trace("bridge attached")
	n.Error("billing client died")

	assert.Contains(t, buf.String(), "bridge attached")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "source=native")
}
