package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("should create a console logger", func(t *testing.T) {
		l, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		assert.Nil(t, l.closer)
		assert.NoError(t, l.Close())
	})

	t.Run("should fall back to info on unknown levels", func(t *testing.T) {
		l, err := New(Config{Level: "chatty"})
		require.NoError(t, err)
		assert.Equal(t, "info", l.GetZerolog().GetLevel().String())
	})

	t.Run("should write plain files without rotation", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "agentcore.log")

		l, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		runnerLog := l.Component("runner")
		runnerLog.Info().Msg("run finished")
		require.NoError(t, l.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"component":"runner"`)
		assert.Contains(t, string(data), "run finished")
	})

	t.Run("should use a rotating writer when max size is set", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "agentcore.log")

		l, err := New(Config{Level: "info", File: logFile, MaxSize: 1})
		require.NoError(t, err)
		_, ok := l.closer.(*RotatingWriter)
		assert.True(t, ok)
		require.NoError(t, l.Close())
	})

	t.Run("should redact secrets in file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "agentcore.log")

		l, err := New(Config{Level: "info", File: logFile, Redaction: true})
		require.NoError(t, err)
		require.NotNil(t, l.redactor)

		zl := l.GetZerolog()
		zl.Info().Str("key", "sk-abcdefghijklmnopqrstuvwxyz").Msg("provider configured")
		require.NoError(t, l.Close())

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "sk-abcdefghijklmnopqrstuvwxyz")
		assert.Contains(t, string(data), "provider configured")
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
}
