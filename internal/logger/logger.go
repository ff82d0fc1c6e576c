package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// zapLogger wraps a *zap.SugaredLogger and implements Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// Ensure zapLogger satisfies Logger.
var _ Logger = (*zapLogger)(nil)

// Debug logs at DebugLevel. keysAndValues are alternating key/value pairs.
func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info logs at InfoLevel.
func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warn logs at WarnLevel.
func (l *zapLogger) Warn(msg string, keysAndValues ...any) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Error logs at ErrorLevel.
func (l *zapLogger) Error(msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// ----------------------------------------------------------------------------
// globalSugar holds the SugaredLogger for easy global use.
var (
	globalSugar *zap.SugaredLogger
	initOnce    sync.Once
	initErr     error
)

// Init creates a Zap logger, wraps it, and returns the Logger interface.
// Safe to call from multiple constructors; the logger is built once.
func Init() (Logger, error) {
	initOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()

		// ISO8601 timestamps + capital, colored levels
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

		zapLog, err := cfg.Build(
			zap.AddCaller(),      // include file:line
			zap.AddCallerSkip(1), // skip this Init frame
		)
		if err != nil {
			initErr = err
			return
		}
		globalSugar = zapLog.Sugar()
	})
	if initErr != nil {
		return nil, initErr
	}
	return &zapLogger{sugar: globalSugar}, nil
}

// Cleanup flushes any buffered log entries. Call at program exit.
func Cleanup() {
	if globalSugar != nil {
		_ = globalSugar.Sync()
	}
}

// Global returns the Logger created by Init(), for use in libraries.
func Global() Logger {
	if globalSugar == nil {
		return Discard()
	}
	return &zapLogger{sugar: globalSugar}
}

// Discard returns a Logger that drops everything. Used in tests.
func Discard() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}
