package main

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"no credentials", "redis://localhost:6379/0", "redis://localhost:6379/0"},
		{"user and password", "postgres://app:s3cret@db:5432/tablemate", "postgres://app@db:5432/tablemate"},
		{"password only", "redis://:s3cret@cache:6379", "redis://redacted@cache:6379"},
		{"unparseable", "postgres://app:pa ss@%zz", "[redacted]"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, redactURL(tt.raw))
		})
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	dsn := "postgres://app:s3cret@db:5432/tablemate"

	assert.Empty(t, sanitizeError(nil, dsn))

	msg := sanitizeError(errors.New("dial "+dsn+": connection refused"), dsn)
	assert.NotContains(t, msg, "s3cret")
	assert.Contains(t, msg, "postgres://app@db:5432/tablemate")

	msg = sanitizeError(errors.New("failed: host=db user=app password=s3cret sslmode=disable"))
	assert.Equal(t, "failed: host=db user=app password=redacted sslmode=disable", msg)
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}
