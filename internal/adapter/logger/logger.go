package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(action, message, requestID string, details map[string]interface{})
	Debug(action, message, requestID string, details map[string]interface{})
	Warn(action, message, requestID string, details map[string]interface{})
	Error(action, message, requestID string, details map[string]interface{}, err error)
}

type zapLogger struct {
	z *zap.Logger
}

// New builds a JSON logger on stdout tagged with the service and hostname.
func New(service string, debug bool) Logger {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	)

	hostname, _ := os.Hostname()
	return FromZap(zap.New(core,
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", service), zap.String("hostname", hostname)),
	))
}

// FromZap wraps an existing zap logger, e.g. zaptest or an observer core.
func FromZap(z *zap.Logger) Logger {
	return &zapLogger{z: z}
}

// NewNop discards everything.
func NewNop() Logger {
	return &zapLogger{z: zap.NewNop()}
}

func (l *zapLogger) Info(action, message, requestID string, details map[string]interface{}) {
	l.z.Info(message, fields(action, requestID, details)...)
}

func (l *zapLogger) Debug(action, message, requestID string, details map[string]interface{}) {
	l.z.Debug(message, fields(action, requestID, details)...)
}

func (l *zapLogger) Warn(action, message, requestID string, details map[string]interface{}) {
	l.z.Warn(message, fields(action, requestID, details)...)
}

func (l *zapLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
	l.z.Error(message, append(fields(action, requestID, details), zap.Error(err))...)
}

func fields(action, requestID string, details map[string]interface{}) []zap.Field {
	fs := make([]zap.Field, 0, 3)
	fs = append(fs, zap.String("action", action), zap.String("request_id", requestID))
	if len(details) > 0 {
		fs = append(fs, zap.Any("details", details))
	}
	return fs
}
