package logging

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/specd/internal/config"
)

func encodeEntry(t *testing.T, enc zapcore.Encoder, fields ...zap.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "msg", Time: time.Unix(0, 0)}, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	tests := []struct {
		name    string
		field   zap.Field
		leaked  string
		present string
	}{
		{"sensitive key", zap.String("api_key", "gsk-abcdef"), "gsk-abcdef", `"api_key":"[REDACTED]"`},
		{"case insensitive key", zap.String("Authorization", "Basic Zm9v"), "Zm9v", "[REDACTED]"},
		{"bearer pattern", zap.String("header", "Bearer abc.def.ghi"), "abc.def.ghi", "[REDACTED]"},
		{"provider key pattern", zap.String("message", "my key is gsk-0123456789abcdefXYZ ok"), "0123456789abcdef", "my key is [REDACTED] ok"},
		{"plain value", zap.String("stage", "discovery"), "", `"stage":"discovery"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := encodeEntry(t, enc.Clone(), tt.field)
			if tt.leaked != "" {
				assert.NotContains(t, out, tt.leaked)
			}
			assert.Contains(t, out, tt.present)
		})
	}
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: false})
	require.NoError(t, err)
	out := encodeEntry(t, enc, zap.String("api_key", "visible"))
	assert.Contains(t, out, "visible")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	assert.Error(t, err)
}

func TestSecretField(t *testing.T) {
	f := Secret("llm_key", config.Secret("gsk-123456"))
	assert.Equal(t, "[REDACTED:10]", f.String)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", Preview("text", "hello", 10).String)
	assert.Equal(t, "hello...", Preview("text", "hello world", 5).String)
	assert.False(t, bytes.Contains([]byte(Preview("t", "abc", 3).String), []byte("...")))
}

func TestRedactingEncoder_LoggerFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.DebugLevel))
	zl.With(zap.String("stage", "scoping")).Info("calling provider",
		zap.String("api_key", "gsk-live-key"),
		zap.String("authorization", "Bearer tok.en.value"),
		zap.String("note", "user pasted gsk-0123456789abcdefXYZ"),
		zap.Int("attempt", 2),
	)

	out := buf.String()
	assert.NotContains(t, out, "gsk-live-key")
	assert.NotContains(t, out, "tok.en.value")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.Contains(t, out, `"stage":"scoping"`)
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"msg":"calling provider"`)
}
