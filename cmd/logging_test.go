package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibast-solutions/ms-go-wxpay/config"
)

func TestConfigureLoggingRejectsUnknownLevel(t *testing.T) {
	err := configureLogging(&config.Config{Log: config.LogConfig{Level: "chatty"}})
	assert.Error(t, err)
}

func TestConfigureLoggingSetsLevel(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetOutput(os.Stderr)

	require.NoError(t, configureLogging(&config.Config{Log: config.LogConfig{Level: "debug"}}))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}

func TestLogOutputUsesStdoutWithoutFile(t *testing.T) {
	assert.Equal(t, os.Stdout, logOutput(config.LogConfig{}))
}

func TestLogOutputWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wxpay.log")
	out := logOutput(config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	assert.NotEqual(t, os.Stdout, out)

	_, err := out.Write([]byte("line\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}
