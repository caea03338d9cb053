package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, Format: "json"})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOperation(ctx, "cancel_investment")

	log.Error(ctx, "boom", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"ledger_op":"cancel_investment"`)
	assert.Contains(t, out, `"stack"`)
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, WarnStack: true, Format: "json"})
	log.Warn(context.Background(), "wallet missing")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	quiet := New(Options{ServiceName: "test", Output: buf, Format: "json"})
	quiet.Warn(context.Background(), "wallet missing")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLoggerRespectsLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: zerolog.WarnLevel, Output: buf, Format: "json"})
	log.Info(context.Background(), "hidden")
	log.Debug(context.Background(), "hidden")
	require.Empty(t, buf.String())
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestLoggerRedactsSensitiveFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	ctx := log.WithFields(context.Background(), map[string]any{
		"destination_address": "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb",
		"refresh_token":       "eyJhbGciOi",
		"currency":            "USDT",
	})
	log.Info(ctx, "withdrawal requested")

	out := buf.String()
	assert.NotContains(t, out, "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb")
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.Contains(t, out, `"destination_address":"[redacted]"`)
	assert.Contains(t, out, `"currency":"USDT"`)
}

func TestLoggerTypedFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	ctx := log.WithField(context.Background(), "replayed", true)
	ctx = log.WithField(ctx, "attempts", 3)
	ctx = log.WithField(ctx, "cause", errors.New("insufficient balance"))
	log.Info(ctx, "typed")

	out := buf.String()
	assert.Contains(t, out, `"replayed":true`)
	assert.Contains(t, out, `"attempts":3`)
	assert.Contains(t, out, `"cause":"insufficient balance"`)
}
