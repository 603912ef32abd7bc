package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with JSON format and stdout output", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		}

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)

		logger.Info("test message")
	})

	t.Run("creates logger with file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "test.log")

		cfg := &config.LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "file",
			FilePath: logFile,
		}

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)

		logger.Info("test file message")

		err = logger.Close()
		require.NoError(t, err)

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test file message")
	})

	t.Run("defaults to info level for invalid level", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "invalid",
			Format: "json",
			Output: "stdout",
		}

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
	})
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	require.NotNil(t, logger)
	logger.Info("discarded")
	logger.ErrorContext(context.Background(), "also discarded")
}

func TestWithTraceID(t *testing.T) {
	logger, err := NewDevelopmentLogger()
	require.NoError(t, err)

	traceID := "test-trace-123"
	loggerWithTrace := logger.WithTraceID(traceID)

	require.NotNil(t, loggerWithTrace)
	assert.NotEqual(t, logger, loggerWithTrace)

	loggerWithTrace.Info("message with trace ID")
}

func TestWithContext(t *testing.T) {
	logger, err := NewDevelopmentLogger()
	require.NoError(t, err)

	t.Run("extracts trace ID from context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), TraceIDKey, "context-trace-456")

		loggerWithContext := logger.WithContext(ctx)
		require.NotNil(t, loggerWithContext)
		assert.NotEqual(t, logger, loggerWithContext)
	})

	t.Run("returns original logger when no trace ID in context", func(t *testing.T) {
		loggerWithContext := logger.WithContext(context.Background())
		assert.Equal(t, logger, loggerWithContext)
	})
}

func TestLogLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "filtering_test.log")

	cfg := &config.LoggingConfig{
		Level:    "warn",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Debug("debug message - should not appear")
	logger.Info("info message - should not appear")
	logger.Warn("warn message - should appear")
	logger.Error("error message - should appear")

	err = logger.Close()
	require.NoError(t, err)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	logContent := string(content)
	assert.NotContains(t, logContent, "debug message")
	assert.NotContains(t, logContent, "info message")
	assert.Contains(t, logContent, "warn message")
	assert.Contains(t, logContent, "error message")
}

func TestJSONFormat(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "json_test.log")

	cfg := &config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("message_saved",
		zap.String("cid", "messaging:general"),
		zap.Int("attachments", 2),
		zap.Bool("pinned", true),
	)

	err = logger.Close()
	require.NoError(t, err)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var logEntry map[string]any
	err = json.Unmarshal(bytes.TrimSpace(content), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "message_saved", logEntry["message"])
	assert.Equal(t, "messaging:general", logEntry["cid"])
	assert.Equal(t, float64(2), logEntry["attachments"])
	assert.Equal(t, true, logEntry["pinned"])
	assert.NotEmpty(t, logEntry["timestamp"])
}

func TestTraceIDInLogs(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "trace_test.log")

	cfg := &config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	traceID := "trace-abc-123"
	ctx := context.WithValue(context.Background(), TraceIDKey, traceID)

	logger.InfoContext(ctx, "message with trace ID")

	err = logger.Close()
	require.NoError(t, err)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var logEntry map[string]any
	err = json.Unmarshal(bytes.TrimSpace(content), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, traceID, logEntry["trace_id"])
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"error", "error"},
		{"fatal", "fatal"},
		{"invalid", "info"}, // defaults to info
		{"", "info"},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLogLevel(tt.input)
			require.NoError(t, err)

			expectedLevel, _ := parseLogLevel(tt.expected)
			assert.Equal(t, expectedLevel, level)
		})
	}
}

func TestLoggerWithFieldsChaining(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "chaining_test.log")

	cfg := &config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	// Chain multiple WithFields calls
	logger1 := logger.WithFields(zap.String("component", "store"))
	logger2 := logger1.WithFields(zap.String("cid", "messaging:general"))
	logger3 := logger2.WithTraceID("trace-chain-456")

	logger3.Info("chained logger message")

	err = logger.Close()
	require.NoError(t, err)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var logEntry map[string]any
	err = json.Unmarshal(bytes.TrimSpace(content), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "store", logEntry["component"])
	assert.Equal(t, "messaging:general", logEntry["cid"])
	assert.Equal(t, "trace-chain-456", logEntry["trace_id"])
}

func TestContextLoggingWithoutTraceID(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "no_trace_test.log")

	cfg := &config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.InfoContext(context.Background(), "message without trace ID",
		zap.String("user_id", "user123"),
	)

	err = logger.Close()
	require.NoError(t, err)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var logEntry map[string]any
	err = json.Unmarshal(bytes.TrimSpace(content), &logEntry)
	require.NoError(t, err)

	assert.Equal(t, "message without trace ID", logEntry["message"])
	assert.Equal(t, "user123", logEntry["user_id"])
	_, hasTraceID := logEntry["trace_id"]
	assert.False(t, hasTraceID, "trace_id should not be present when not in context")
}
