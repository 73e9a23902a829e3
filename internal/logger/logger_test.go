package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Development(t *testing.T) {
	log, err := New(true, "")
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	// Should not panic
	log.Info("test message")
}

func TestNew_ProductionLevel(t *testing.T) {
	log, err := New(false, "warn")
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.WarnLevel))
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(false, "chatty")
	assert.Error(t, err)
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(true, "debug") })
	assert.Panics(t, func() { Must(true, "chatty") })
}
