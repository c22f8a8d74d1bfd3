package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest records the outcome of an outbound HTTP call at a level
// chosen from the status code.
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500 || statusCode == 0:
		l.ErrorWithFields("HTTP request failed", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogStrategy records a single retrieval strategy attempt
func LogStrategy(l Logger, strategy, id string, err error, elapsed time.Duration) {
	entry := l.WithFields(map[string]interface{}{
		"strategy": strategy,
		"id":       id,
		"elapsed":  elapsed,
	})
	if err != nil {
		entry.WithError(err).Debug("Strategy did not produce a payload")
		return
	}
	entry.Info("Strategy produced payload")
}

// LogMedia records a media materialization result
func LogMedia(l Logger, url, path string, err error) {
	entry := l.WithField("url", url)
	switch {
	case err != nil:
		entry.WithError(err).Warn("Media download failed, dropping reference")
	case path == "":
		entry.Debug("Media download disabled")
	default:
		entry.WithField("path", path).Debug("Media saved")
	}
}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string)                                     {}
func (nopLogger) Info(string)                                      {}
func (nopLogger) Warn(string)                                      {}
func (nopLogger) Error(string)                                     {}
func (nopLogger) Fatal(string)                                     {}
func (n nopLogger) WithField(string, interface{}) Logger           { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger       { return n }
func (n nopLogger) WithError(error) Logger                         { return n }
func (n nopLogger) WithContext(context.Context) Logger             { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{})   {}
func (nopLogger) InfoWithFields(string, map[string]interface{})    {}
func (nopLogger) WarnWithFields(string, map[string]interface{})    {}
func (nopLogger) ErrorWithFields(string, map[string]interface{})   {}
func (nopLogger) FatalWithFields(string, map[string]interface{})   {}
func (nopLogger) GetZerolog() *zerolog.Logger                      { z := zerolog.Nop(); return &z }
