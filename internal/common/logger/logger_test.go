package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestForComponent_TagsEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ForComponent(NewZapAdapter(zap.New(core)), "dispatcher")

	l.Info("applied", map[string]interface{}{"command": "clear_highlights"})
	l.Error("failed", map[string]interface{}{"error": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "dispatcher", entries[0].ContextMap()["component"])
	assert.Equal(t, "clear_highlights", entries[0].ContextMap()["command"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}

func TestForComponent_NilLogger(t *testing.T) {
	l := ForComponent(nil, "style")
	assert.NotPanics(t, func() { l.Debug("ignored", nil) })
}

func TestNewRotating_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.log")
	zl := NewRotating("debug", "json", path)
	NewZapAdapter(zl).Info("hello", map[string]interface{}{"k": 1})
	require.NoError(t, zl.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hello"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
