package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultsToInfo(t *testing.T) {
	logger, cleanup, err := New(Options{})
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	logger, cleanup, err := New(Options{Level: "warn", Verbose: true})
	require.NoError(t, err)
	defer cleanup()

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toon-shelf.log")
	logger, cleanup, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Info("Catalog loaded")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"Catalog loaded"`))
}
