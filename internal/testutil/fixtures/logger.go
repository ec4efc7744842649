package fixtures

import "github.com/kevin07696/card-reconciliation/internal/domain/ports"

// NopLogger discards every log line.
type NopLogger struct{}

func (NopLogger) Info(string, ...ports.Field)  {}
func (NopLogger) Error(string, ...ports.Field) {}
func (NopLogger) Warn(string, ...ports.Field)  {}
func (NopLogger) Debug(string, ...ports.Field) {}
