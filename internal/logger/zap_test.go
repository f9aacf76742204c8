package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		env     string
		enabled zap.AtomicLevel
		wantErr bool
	}{
		{level: "debug", env: "development", enabled: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{level: "", env: "production", enabled: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{level: "error", env: "production", enabled: zap.NewAtomicLevelAt(zap.ErrorLevel)},
		{level: "loud", env: "production", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.env, func(t *testing.T) {
			l, err := New(tt.level, tt.env)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.enabled.Level()))
			assert.False(t, l.Core().Enabled(tt.enabled.Level()-1))
		})
	}
}
