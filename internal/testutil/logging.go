package testutil

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Write(p []byte) (n int, err error) {
	l.t.Log(strings.Trim(string(p), "\n"))
	return len(p), nil
}

// InstallZapLogger replaces the global zap logger for the duration of the test. Entries go
// to the test log and are also returned for assertions.
func InstallZapLogger(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	logger, logs := NewObservedLogger(t)
	restore := zap.ReplaceGlobals(logger)
	t.Cleanup(restore)
	return logs
}

// NewTestLogger creates a zap logger for testing that outputs to the test log.
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zap.New(newTestCore(t))
}

// NewObservedLogger is NewTestLogger teed with an in-memory observer.
func NewObservedLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(zapcore.NewTee(newTestCore(t), core)), logs
}

func newTestCore(t *testing.T) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&testLogger{t: t}),
		zapcore.DebugLevel,
	)
}
