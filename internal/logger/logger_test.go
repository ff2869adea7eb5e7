package logger

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
    log, err := New("warn", "json")
    require.NoError(t, err)
    assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
    assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

    _, err = New("debug", "console")
    require.NoError(t, err)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
    _, err := New("loud", "json")
    assert.Error(t, err)
}
