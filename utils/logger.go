package utils

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	userIDKey        contextKey = "user_id"
)

type LogConfig struct {
	Level  string
	Format string
	Output io.Writer
}

type Logger struct {
	service string
	zl      zerolog.Logger
}

var defaultLogger = newLogger("invoicer", LogConfig{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})

func newLogger(service string, cfg LogConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return &Logger{
		service: service,
		zl:      zerolog.New(out).Level(level).With().Timestamp().Str("service", service).Logger(),
	}
}

// SetupLogger replaces the package logger. Called once from the CLI after the
// configuration is loaded.
func SetupLogger(service string, cfg LogConfig) {
	defaultLogger = newLogger(service, cfg)
}

func NewLogger(service string) *Logger {
	return &Logger{
		service: service,
		zl:      defaultLogger.zl.With().Str("component", service).Logger(),
	}
}

func (l *Logger) Debug(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Debug(), message, fields...)
}

func (l *Logger) Info(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Info(), message, fields...)
}

func (l *Logger) Warn(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Warn(), message, fields...)
}

func (l *Logger) Error(ctx context.Context, message string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Error(), message, fields...)
}

func (l *Logger) log(ctx context.Context, event *zerolog.Event, message string, fields ...map[string]interface{}) {
	if event == nil {
		return
	}

	if id := GetCorrelationID(ctx); id != "" {
		event = event.Str("correlation_id", id)
	}
	if id := GetUserID(ctx); id != "" {
		event = event.Str("user_id", id)
	}
	if len(fields) > 0 && fields[0] != nil {
		event = event.Fields(fields[0])
	}

	event.Msg(message)
}

func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func Debug(ctx context.Context, message string, fields ...map[string]interface{}) {
	defaultLogger.Debug(ctx, message, fields...)
}

func Info(ctx context.Context, message string, fields ...map[string]interface{}) {
	defaultLogger.Info(ctx, message, fields...)
}

func Warn(ctx context.Context, message string, fields ...map[string]interface{}) {
	defaultLogger.Warn(ctx, message, fields...)
}

func Error(ctx context.Context, message string, fields ...map[string]interface{}) {
	defaultLogger.Error(ctx, message, fields...)
}
