package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		want  interface{}
	}{
		{name: "plain field untouched", key: "email", value: "admin@example.com", want: "admin@example.com"},
		{name: "short password fully masked", key: "password", value: "secret", want: "***"},
		{name: "long token keeps tail", key: "token", value: "eyJhbGciOiJIUzI1NiJ9.abcd", want: "***abcd"},
		{name: "case insensitive key", key: "SSN", value: "123-45-6789", want: "***6789"},
		{name: "non string sensitive value", key: "authorization", value: 42, want: "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.key, tt.value))
		})
	}
}

func TestZapWrapper_RedactsSensitiveFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"module": "session"})

	log.Info("signed in", map[string]interface{}{
		"email": "admin@example.com",
		"token": "eyJhbGciOiJIUzI1NiJ9.payload.sig1",
	})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "session", fields["module"])
		assert.Equal(t, "admin@example.com", fields["email"])
		assert.Equal(t, "***sig1", fields["token"])
	}
}

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug", "console").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn", "json").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("unknown", "json").Core().Enabled(zapcore.InfoLevel))
}
