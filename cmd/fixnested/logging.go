package main

import (
	"os"
	"path/filepath"

	"github.com/garethgeorge/fixnested/internal/env"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func installLoggers(verbose bool, logFile string) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	var console zapcore.Core
	if env.IsProd() {
		console = zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(os.Stderr),
			level,
		)
	} else {
		// Pretty logging for console, stdout is left to --script -
		c := zap.NewDevelopmentEncoderConfig()
		c.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			c.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		c.EncodeTime = zapcore.ISO8601TimeEncoder
		console = zapcore.NewCore(
			zapcore.NewConsoleEncoder(c),
			zapcore.AddSync(colorable.NewColorableStderr()),
			level,
		)
	}

	if logFile == "" {
		zap.ReplaceGlobals(zap.New(console))
		return
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		zap.ReplaceGlobals(zap.New(console))
		zap.S().Errorf("error creating log directory for %q, will only log to console: %v", logFile, err)
		return
	}

	writer := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}

	// The file always gets debug output, whatever the console level.
	file := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(writer),
		zapcore.DebugLevel,
	)

	zap.ReplaceGlobals(zap.New(zapcore.NewTee(console, file)))
}
