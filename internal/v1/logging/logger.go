// Package logging configures the process-wide zap logger and threads
// chat-scoped identity (session, user, room) through contexts, so every
// log line about a connection is attributable without each call site
// repeating the fields.
package logging

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is the chat-scoped identity a context can carry. Zero-valued
// entries are omitted from output.
type Fields struct {
	SessionID string
	User      string
	Room      string
}

type contextKey struct{}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Initialize builds the process logger. env selects the encoding (console
// for development, JSON otherwise); level accepts zap level names and
// falls back to info when unparseable. Re-initialization replaces the
// logger, which keeps tests independent.
func Initialize(env, level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		EncoderConfig:    encCfg,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    map[string]any{"service": "parleyd"},
	}
	if env == "development" {
		cfg.Development = true
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	mu.Lock()
	logger = built
	mu.Unlock()
	return nil
}

// L returns the current process logger: a nop logger before Initialize.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// WithFields returns a context carrying the given identity merged over
// whatever the context already holds; empty entries keep the prior value.
func WithFields(ctx context.Context, f Fields) context.Context {
	cur := fieldsFrom(ctx)
	if f.SessionID != "" {
		cur.SessionID = f.SessionID
	}
	if f.User != "" {
		cur.User = f.User
	}
	if f.Room != "" {
		cur.Room = f.Room
	}
	return context.WithValue(ctx, contextKey{}, cur)
}

func fieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(contextKey{}).(Fields)
	return f
}

func (f Fields) zap() []zap.Field {
	out := make([]zap.Field, 0, 3)
	if f.SessionID != "" {
		out = append(out, zap.String("session_id", f.SessionID))
	}
	if f.User != "" {
		out = append(out, zap.String("user_name", f.User))
	}
	if f.Room != "" {
		out = append(out, zap.String("room_name", f.Room))
	}
	return out
}

func write(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	ce := L().Check(lvl, msg)
	if ce == nil {
		return
	}
	ce.Write(append(fieldsFrom(ctx).zap(), fields...)...)
}

// Info logs at InfoLevel with the context's identity attached.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.InfoLevel, msg, fields)
}

// Warn logs at WarnLevel with the context's identity attached.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.WarnLevel, msg, fields)
}

// Error logs at ErrorLevel with the context's identity attached.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.ErrorLevel, msg, fields)
}

// Fatal logs at FatalLevel and terminates the process.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	write(ctx, zapcore.FatalLevel, msg, fields)
}
