package security

import (
	"fmt"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerAdapter adapts zap.Logger to the ports.Logger interface
type ZapLoggerAdapter struct {
	logger *zap.Logger
}

// NewZapLogger creates a new ZapLoggerAdapter
func NewZapLogger(logger *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{logger: logger}
}

// BuildLogger creates the process logger from the configured level.
// Development mode uses the console encoder and stack traces on warnings.
func BuildLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Info logs an info message
func (z *ZapLoggerAdapter) Info(msg string, fields ...ports.Field) {
	z.logger.Info(msg, convertFields(fields)...)
}

// Error logs an error message
func (z *ZapLoggerAdapter) Error(msg string, fields ...ports.Field) {
	z.logger.Error(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (z *ZapLoggerAdapter) Warn(msg string, fields ...ports.Field) {
	z.logger.Warn(msg, convertFields(fields)...)
}

// Debug logs a debug message
func (z *ZapLoggerAdapter) Debug(msg string, fields ...ports.Field) {
	z.logger.Debug(msg, convertFields(fields)...)
}

// convertFields converts ports.Field to zap.Field, keeping common types strongly typed
func convertFields(fields []ports.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch v := f.Value.(type) {
		case string:
			zapFields[i] = zap.String(f.Key, v)
		case int:
			zapFields[i] = zap.Int(f.Key, v)
		case bool:
			zapFields[i] = zap.Bool(f.Key, v)
		case []string:
			zapFields[i] = zap.Strings(f.Key, v)
		case error:
			zapFields[i] = zap.NamedError(f.Key, v)
		case fmt.Stringer:
			zapFields[i] = zap.Stringer(f.Key, v)
		default:
			zapFields[i] = zap.Any(f.Key, v)
		}
	}
	return zapFields
}
