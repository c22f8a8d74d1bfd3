package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xscraper/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level without color", cfg: &config.LoggingConfig{Level: "debug", NoColor: true}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "warn", File: filepath.Join(t.TempDir(), "logs", "x.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "debug")
	require.NoError(t, err)

	l.WithField("id", "20").WithError(errors.New("boom")).InfoWithFields("fetched", map[string]interface{}{
		"elapsed": 2 * time.Second,
		"count":   3,
	})

	out := buf.String()
	assert.Contains(t, out, `"id":"20"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"count":3`)
	assert.Contains(t, out, `"message":"fetched"`)
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, "warn")
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent, err := NewWithWriter(&buf, "info")
	require.NoError(t, err)

	_ = parent.WithField("strategy", "embed")
	parent.Info("plain")

	assert.NotContains(t, buf.String(), "strategy")
}

func TestTestLoggerCapturesChildren(t *testing.T) {
	tl := NewTestLogger()
	tl.WithField("id", "7").WithError(errors.New("nope")).Warn("retrying")
	tl.Info("done")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "7", msgs[0].Fields["id"])
	assert.EqualError(t, msgs[0].Error, "nope")
	assert.True(t, tl.HasMessage("done"))
	assert.True(t, tl.Contains("retry"))
	assert.Len(t, tl.GetMessagesByLevel("INFO"), 1)

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://api.x.com/2/tweets", 404, time.Millisecond)
	LogStrategy(tl, "embed", "20", nil, time.Second)
	LogMedia(tl, "https://pbs.twimg.com/a.jpg", "", errors.New("timeout"))

	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
	assert.True(t, tl.HasMessage("Strategy produced payload"))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
		assert.NotNil(t, l.GetZerolog())
	})
}
