package logger_test

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/ChatSync/config"
	logger "github.com/Gopher0727/ChatSync/middleware/log"
)

// Example_basicUsage demonstrates basic logger usage
func Example_basicUsage() {
	// Create logger from configuration
	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Log messages at different levels
	log.Debug("This is a debug message")
	log.Info("Store opened")
	log.Warn("This is a warning")
	log.Error("An error occurred", zap.Error(fmt.Errorf("example error")))
}

// Example_withTraceID demonstrates trace ID usage
func Example_withTraceID() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Generate a new trace ID
	traceID := logger.NewTraceID()

	// Create logger with trace ID
	logWithTrace := log.WithTraceID(traceID)
	logWithTrace.Info("Applying channel list")
	logWithTrace.Info("Channel list applied")
}

// Example_contextAware demonstrates context-aware logging
func Example_contextAware() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Create context with trace ID
	ctx := logger.WithTraceID(context.Background(), "trace-123")

	// Log with context - trace ID is automatically included
	log.InfoContext(ctx, "message_saved",
		zap.String("message_id", "msg123"),
		zap.String("cid", "messaging:general"))

	log.InfoContext(ctx, "channel_marked_read",
		zap.String("cid", "messaging:general"))
}

// Example_structuredFields demonstrates structured logging
func Example_structuredFields() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Log with structured fields
	log.Info("batch_applied",
		zap.String("cid", "messaging:general"),
		zap.Int("messages", 25),
		zap.Int("members", 4),
		zap.Int("skipped", 1))
}

// Example_persistentFields demonstrates creating a logger with persistent fields
func Example_persistentFields() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Create a logger with persistent fields for a specific session
	sessionLog := log.WithFields(
		zap.String("user_id", "user123"),
		zap.String("device_id", "device456"))

	// All subsequent logs will include these fields
	sessionLog.Info("session started")
	sessionLog.Info("channel list synced")
	sessionLog.Info("pending messages resent")
}
