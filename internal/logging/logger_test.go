package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsetup/internal/config"
	"hsetup/internal/logging"
)

func TestNewFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log", "hsetup.log")

	logger, err := logging.New(config.LogConfig{
		Level:    "debug",
		Format:   "json",
		Output:   "file",
		FilePath: path,
		MaxSize:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("step", "format namenode").Info("step completed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"step completed"`)
	assert.Contains(t, string(data), `"step":"format namenode"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	t.Parallel()

	logger, err := logging.New(config.LogConfig{Level: "chatty", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	_, err := logging.New(config.LogConfig{Level: "info", Format: "xml"})
	assert.ErrorContains(t, err, "unsupported log format")

	_, err = logging.New(config.LogConfig{Level: "info", Output: "syslog"})
	assert.ErrorContains(t, err, "unsupported log output")

	_, err = logging.New(config.LogConfig{Level: "info", Output: "file"})
	assert.ErrorContains(t, err, "file path is required")
}
