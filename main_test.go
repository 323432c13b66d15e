package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 3, exitCode(exitCodeError{code: 3}))
	assert.Equal(t, 137, exitCode(fmt.Errorf("launch: %w", exitCodeError{code: 137})))
}

func TestNewLoggerLevels(t *testing.T) {
	l, err := newLogger("WARN", false)
	assert.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = newLogger("nonsense", true)
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
