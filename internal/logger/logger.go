// Structured logging on top of zap.
// Every core shares the same JSON encoder; an optional file core rotates through lumberjack.

package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Common field keys used across the pipeline.
const (
	KeyRunID = "run_id"
	KeyStep  = "step"
	KeyURL   = "url"
)

type Plugin = zapcore.Core

type Options struct {
	Level string
	// File enables a rotating JSON log file next to stderr output.
	File string
}

func DefaultEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

func DefaultEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(DefaultEncoderConfig())
}

func DefaultOption() []zap.Option {
	var stackTraceLevel zap.LevelEnablerFunc = func(level zapcore.Level) bool {
		return level >= zapcore.DPanicLevel
	}
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(stackTraceLevel),
	}
}

func DefaultLumberjackLogger() *lumberjack.Logger {
	return &lumberjack.Logger{
		MaxSize:    50,
		MaxBackups: 5,
		LocalTime:  true,
		Compress:   true,
	}
}

func NewPlugin(writer zapcore.WriteSyncer, enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(DefaultEncoder(), writer, enabler)
}

func NewStderrPlugin(enabler zapcore.LevelEnabler) Plugin {
	return NewPlugin(zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler)
}

// NewFilePlugin returns the closer of the underlying lumberjack writer, since it
// cannot be flushed through zap's Sync.
func NewFilePlugin(filePath string, enabler zapcore.LevelEnabler) (Plugin, io.Closer) {
	writer := DefaultLumberjackLogger()
	writer.Filename = filePath
	return NewPlugin(zapcore.AddSync(writer), enabler), writer
}

// New builds the process logger. The returned closer must run before exit.
func New(opts Options) (*zap.Logger, io.Closer, error) {
	level, err := zapcore.ParseLevel(defaultLevel(opts.Level))
	if err != nil {
		return nil, nil, err
	}

	cores := []zapcore.Core{NewStderrPlugin(level)}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		fileCore, c := NewFilePlugin(opts.File, level)
		cores = append(cores, fileCore)
		closer = c
	}

	return zap.New(zapcore.NewTee(cores...), DefaultOption()...), closer, nil
}

// ForStep scopes a logger to one pipeline step.
func ForStep(l *zap.Logger, step string) *zap.Logger {
	return l.With(zap.String(KeyStep, step))
}

func defaultLevel(level string) string {
	if level == "" {
		return "info"
	}
	return level
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
