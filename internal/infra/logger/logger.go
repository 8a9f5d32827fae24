// Package logger is the centralized zap wrapper used by both binaries.
// It initializes level and encoding, and lets callers redirect the
// target streams (stdout/stderr) at runtime. A zap.AtomicLevel allows
// the level to change without rebuilding the core from scratch.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logRotation bounds the on-disk footprint of the file sink SetFileOutput
// installs: CrazyOnes runs unattended for long stretches, so rotation
// must happen on its own rather than needing an operator's cron job.
const (
	logRotationMaxSizeMB  = 10
	logRotationMaxBackups = 5
	logRotationMaxAgeDays = 28
)

var (
	// mu guards every mutation of the package-level logger state.
	mu sync.Mutex
	// log holds the current zap.Logger instance used across the process.
	log *zap.Logger
	// logLevel allows the active level to change without rebuilding the core.
	logLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	// encoderCfg is rebuilt on Init.
	encoderCfg = defaultEncoderConfig()
	// stdoutWriter is the current target for normal log output.
	stdoutWriter = zapcore.Lock(zapcore.AddSync(os.Stdout))
	// stderrWriter is the current target for the logger's own error output.
	stderrWriter = zapcore.Lock(zapcore.AddSync(os.Stderr))
)

// defaultEncoderConfig builds a colored console encoder with a short
// caller and a fixed time layout. Switch to a JSON encoder here if
// machine-readable logs are ever needed.
func defaultEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// rebuildLoggerLocked recreates the global logger from the current
// writers and level. Caller must hold mu. AddCallerSkip(1) hides this
// package's own wrapper functions from the reported caller.
func rebuildLoggerLocked() {
	encoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(encoder, stdoutWriter, logLevel)
	if log != nil {
		_ = log.Sync()
	}
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.ErrorOutput(stderrWriter))
}

// Init sets up the global logger at the given level (debug/info/warn/
// error, case-insensitive; anything else falls back to info).
func Init(level string) {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(level) {
	case "debug":
		logLevel.SetLevel(zap.DebugLevel)
	case "warn":
		logLevel.SetLevel(zap.WarnLevel)
	case "error":
		logLevel.SetLevel(zap.ErrorLevel)
	default:
		logLevel.SetLevel(zap.InfoLevel)
	}

	encoderCfg = defaultEncoderConfig()
	rebuildLoggerLocked()
}

// SetWriters redirects the logger's output streams and rebuilds the
// core. Pass nil for either argument to fall back to stdout/stderr.
// Both binaries use it to route log output through the console's
// readline writers; SetFileOutput adds the rotating file on top.
func SetWriters(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if stdout == nil {
		stdoutWriter = zapcore.Lock(zapcore.AddSync(os.Stdout))
	} else {
		stdoutWriter = zapcore.Lock(zapcore.AddSync(stdout))
	}
	if stderr == nil {
		stderrWriter = zapcore.Lock(zapcore.AddSync(os.Stderr))
	} else {
		stderrWriter = zapcore.Lock(zapcore.AddSync(stderr))
	}

	rebuildLoggerLocked()
}

// SetFileOutput fans every log line into a rotating file at path, in
// addition to whatever stdout/stderr writers are already configured.
// Used by both binaries so the operator console's "--log" tail has a
// stable file to read from.
func SetFileOutput(path string) {
	mu.Lock()
	defer mu.Unlock()

	fileWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    logRotationMaxSizeMB,
		MaxBackups: logRotationMaxBackups,
		MaxAge:     logRotationMaxAgeDays,
		Compress:   true,
	}

	current := stdoutWriter
	stdoutWriter = zapcore.NewMultiWriteSyncer(current, zapcore.AddSync(fileWriter))
	rebuildLoggerLocked()
}

// Logger returns the current zap.Logger, lazily building a default one
// on first use.
func Logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	if log == nil {
		rebuildLoggerLocked()
	}
	return log
}

// IsDebugEnabled reports whether the debug level is currently active.
func IsDebugEnabled() bool {
	return Logger().Level() <= zap.DebugLevel
}

// Debug logs a structured message at debug level.
func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }

// Info logs a structured message at info level.
func Info(msg string, fields ...zap.Field) { Logger().Info(msg, fields...) }

// Warn logs a structured message at warn level.
func Warn(msg string, fields ...zap.Field) { Logger().Warn(msg, fields...) }

// Error logs a structured message at error level.
func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }

// Fatal logs at fatal level; zap then terminates the process with exit
// status 1.
func Fatal(msg string, fields ...zap.Field) {
	Logger().Fatal(msg, fields...)
	_ = Logger().Sync()
	os.Exit(1)
}

// Debugf formats via fmt.Sprintf. Prefer the structured variant on hot paths.
func Debugf(msg string, a ...any) { Logger().Debug(fmt.Sprintf(msg, a...)) }

// Infof formats via fmt.Sprintf.
func Infof(msg string, a ...any) { Logger().Info(fmt.Sprintf(msg, a...)) }

// Warnf formats via fmt.Sprintf.
func Warnf(msg string, a ...any) { Logger().Warn(fmt.Sprintf(msg, a...)) }

// Errorf formats via fmt.Sprintf.
func Errorf(msg string, a ...any) { Logger().Error(fmt.Sprintf(msg, a...)) }
