// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/bulksend/internal/config"
)

// bufferSink adapts a bytes.Buffer to zapcore.WriteSyncer.
type bufferSink struct {
	bytes.Buffer
}

func (b *bufferSink) Sync() error { return nil }

func TestNew(t *testing.T) {
	t.Run("console output is colorized and names components", func(t *testing.T) {
		sink := &bufferSink{}
		logger := New(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "bulksend",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)

		logger.Named("pacing").Info("Cooldown started.", zap.Int("seconds", 42))
		require.NoError(t, logger.Sync())

		out := sink.String()
		assert.Contains(t, out, ansiColors["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "bulksend.pacing.")
		assert.Contains(t, out, "Cooldown started.")
		assert.Contains(t, out, `"seconds": 42`)
	})

	t.Run("uncolored levels stay plain", func(t *testing.T) {
		sink := &bufferSink{}
		logger := New(config.LoggerConfig{Level: "info", Format: "console"}, sink)
		logger.Warn("plain")
		assert.Contains(t, sink.String(), "WARN")
		assert.NotContains(t, sink.String(), colorReset)
	})

	t.Run("json output", func(t *testing.T) {
		sink := &bufferSink{}
		logger := New(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, sink)
		logger.Warn("This is a JSON message.", zap.String("key", "value"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sink.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "This is a JSON message.", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("level filtering and bad level fallback", func(t *testing.T) {
		sink := &bufferSink{}
		logger := New(config.LoggerConfig{Level: "not-a-level", Format: "json"}, sink)
		logger.Debug("hidden")
		logger.Info("shown")
		assert.NotContains(t, sink.String(), "hidden")
		assert.Contains(t, sink.String(), "shown")
	})

	t.Run("file core writes json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bulksend.log")
		logger := New(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&bufferSink{}))
		logger.Error("This should go to the file.")
		_ = logger.Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})
}

func TestInitialize(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("only the first call takes effect", func(t *testing.T) {
		ResetForTest()
		sink := &bufferSink{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, sink)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		assert.Contains(t, sink.String(), "First")
		assert.NotContains(t, sink.String(), "Second")
	})

	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
		assert.Nil(t, globalLogger.Load())
	})

	t.Run("sync without logger is a no-op", func(t *testing.T) {
		ResetForTest()
		assert.NotPanics(t, Sync)
	})
}
