// Package logger adapts the shared zap-backed logger to the narrow logging
// interface the rest of the application depends on.
package logger

import (
	"context"
)

// Logger defines the logging interface used throughout the application.
// External loggers that implement these methods can be wrapped with ZapAdapter.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, err error, fields map[string]any)
}

// ZapAdapter wraps the shared logger and optionally tags every record with a
// component name, so the classifier, resolver and publisher lines can be told
// apart in the daemon's diagnostic stream.
type ZapAdapter struct {
	log       Logger
	component string
}

// NewZapAdapter creates a ZapAdapter wrapping the given logger.
func NewZapAdapter(log Logger) *ZapAdapter {
	return &ZapAdapter{log: log}
}

// WithComponent returns a copy of the adapter that tags records with the
// component name.
func (a *ZapAdapter) WithComponent(name string) *ZapAdapter {
	return &ZapAdapter{log: a.log, component: name}
}

func (a *ZapAdapter) tag(fields map[string]any) map[string]any {
	if a.component == "" {
		return fields
	}
	tagged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		tagged[k] = v
	}
	tagged["component"] = a.component
	return tagged
}

// Info logs an info message.
func (a *ZapAdapter) Info(ctx context.Context, msg string, fields map[string]any) {
	a.log.Info(ctx, msg, a.tag(fields))
}

// Debug logs a debug message.
func (a *ZapAdapter) Debug(ctx context.Context, msg string, fields map[string]any) {
	a.log.Debug(ctx, msg, a.tag(fields))
}

// Warn logs a warning message.
func (a *ZapAdapter) Warn(ctx context.Context, msg string, fields map[string]any) {
	a.log.Warn(ctx, msg, a.tag(fields))
}

// Error logs an error message.
func (a *ZapAdapter) Error(ctx context.Context, msg string, err error, fields map[string]any) {
	a.log.Error(ctx, msg, err, a.tag(fields))
}
