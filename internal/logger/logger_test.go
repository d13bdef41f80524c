package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSetLevel(t *testing.T) {
	defer level.SetLevel(zapcore.WarnLevel)

	assert.NoError(t, SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	assert.NoError(t, SetLevel("error"))
	assert.Equal(t, zapcore.ErrorLevel, level.Level())
}

func TestSetLevel_Unknown(t *testing.T) {
	defer level.SetLevel(zapcore.WarnLevel)

	assert.NoError(t, SetLevel("info"))
	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, level.Level())
}

func TestNamed(t *testing.T) {
	assert.NotNil(t, Named("session"))
}
