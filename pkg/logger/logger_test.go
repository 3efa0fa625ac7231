package logger

import (
	"bytes"
	"testing"

	"github.com/awlx/agentops-mcp/pkg/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, getLogLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	lg := newLogger(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))

	lg.Debug("hidden")
	lg.Info("visible")
	_ = lg.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
}

func TestKeyPreview(t *testing.T) {
	assert.Equal(t, "a640373b...", KeyPreview("a640373b-30ae-4655-a1f3-5caa882a8721"))
	assert.Equal(t, "***", KeyPreview("short"))
}
