// Package logger is the structured logger shared by the server, the service and the hub.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// credentialKeys never reach the log output, whatever their value.
var credentialKeys = []string{"token", "authorization", "password", "secret", "api_key"}

// Logger takes alternating key/value pairs after the message, like zap's *w methods.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a JSON logger for "production" and a colored console logger otherwise.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(mode, "production") || strings.EqualFold(mode, "prod") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &Logger{s: z.Sugar()}, nil
}

func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() { _ = l.s.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, scrub(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, scrub(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, scrub(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, scrub(kv)...) }

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.s.Fatalw(msg, scrub(kv)...) }

// With returns a child logger that prefixes every line with kv, e.g. "component", "hub".
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{s: l.s.With(scrub(kv)...)}
}

// scrub replaces credential values. A bearer header value is hidden under any key.
func scrub(kv []interface{}) []interface{} {
	var out []interface{}
	for i := 1; i < len(kv); i += 2 {
		if !hidden(kv[i-1], kv[i]) {
			continue
		}
		if out == nil {
			out = append([]interface{}(nil), kv...)
		}
		out[i] = redacted
	}
	if out == nil {
		return kv
	}
	return out
}

func hidden(key, val interface{}) bool {
	if s, ok := val.(string); ok && strings.HasPrefix(s, "Bearer ") {
		return true
	}
	k, ok := key.(string)
	if !ok {
		return false
	}
	k = strings.ToLower(k)
	for _, c := range credentialKeys {
		if strings.Contains(k, c) {
			return true
		}
	}
	return false
}
