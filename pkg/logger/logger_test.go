package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	prod, err := New("production")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))

	dev, err := New("development")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestWithOTel_KeepsBaseLevel(t *testing.T) {
	base, err := New("production")
	require.NoError(t, err)

	log := WithOTel(base, "test")
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	log.Info("hello")
}
