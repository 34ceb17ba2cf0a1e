package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(false)

	require.NotNil(t, logger)
	assert.False(t, logger.debug)
	assert.NotNil(t, logger.logger)
}

func TestNewLogger_Debug(t *testing.T) {
	logger := NewLogger(true)

	assert.True(t, logger.debug)
}

func TestLogger_Levels(t *testing.T) {
	logger := NewLogger(true)

	logger.Debug("debug %d", 1)
	logger.Info("info %d", 2)
	logger.Warn("warn %d", 3)
	logger.Error("error %d", 4)

	// debug messages are dropped when disabled
	NewLogger(false).Debug("should not appear")
}

func TestLogger_SetFile(t *testing.T) {
	logger := NewLogger(false)
	path := filepath.Join(t.TempDir(), "logs", "meminject.log")

	require.NoError(t, logger.SetFile(path))
	logger.Info("written to file")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO]")
	assert.Contains(t, string(data), "written to file")
}

func TestLogger_SetFile_CreatesDirectories(t *testing.T) {
	logger := NewLogger(false)
	path := filepath.Join(t.TempDir(), "a", "b", "c", "out.log")

	require.NoError(t, logger.SetFile(path))
	defer logger.Close()

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	logger := NewLogger(false)

	assert.NoError(t, logger.Close())
}
