package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with key/value convenience methods used across the
// service. Repositories that need typed fields use Zap() directly.
type Logger struct {
	sugar *zap.SugaredLogger
	base  *zap.Logger
}

// New builds a logger for the given level and environment. Production
// uses the JSON encoder; everything else gets the console encoder.
func New(level, environment string) *Logger {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Fall back to a bare production logger rather than starting blind.
		base = zap.Must(zap.NewProduction())
		base.Error("failed to build configured logger, using defaults", zap.Error(err))
	}

	return &Logger{sugar: base.Sugar(), base: base}
}

// NewLogger wraps an existing zap logger, used by tests and components
// that already hold one.
func NewLogger(base *zap.Logger) *Logger {
	return &Logger{sugar: base.Sugar(), base: base}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return NewLogger(zap.NewNop())
}

// Zap returns the underlying structured logger for call sites that log
// with typed fields.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

// ForRequest returns a request-scoped sugared logger carrying the
// request id, method and path on every entry.
func (l *Logger) ForRequest(requestID, method, path string) *zap.SugaredLogger {
	return l.sugar.With(
		"request_id", requestID,
		"method", method,
		"path", path,
	)
}

// With returns a child logger with the given key/value pairs attached.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	sugar := l.sugar.With(keysAndValues...)
	return &Logger{sugar: sugar, base: sugar.Desugar()}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

// Sync flushes buffered entries. Called on shutdown.
func (l *Logger) Sync() {
	_ = l.base.Sync()
	os.Stderr.Sync()
}
