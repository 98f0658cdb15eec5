package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		level   zapcore.Level
		wantErr bool
	}{
		{"development defaults", Config{Development: true}, zapcore.DebugLevel, false},
		{"production defaults", Config{}, zapcore.InfoLevel, false},
		{"explicit level", Config{Level: "WARN", Encoding: "json"}, zapcore.WarnLevel, false},
		{"console in production", Config{Encoding: "console", Level: "error"}, zapcore.ErrorLevel, false},
		{"bad level", Config{Level: "loud"}, zapcore.InfoLevel, true},
		{"bad encoding", Config{Encoding: "xml"}, zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.level))
			if tt.level > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.level-1))
			}
		})
	}
}

func TestSync_NilLogger(t *testing.T) {
	assert.NoError(t, Sync(nil))
}
