package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hud.log")

	log, closeFn, err := Setup(Options{Level: "debug", File: path, Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("source", "wifi").Debug("published")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "published")
	assert.Contains(t, string(data), "source=wifi")
}

func TestSetupDefaults(t *testing.T) {
	log, closeFn, err := Setup(Options{Quiet: true})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.NoError(t, closeFn())
}

func TestSetupBadLevel(t *testing.T) {
	_, _, err := Setup(Options{Level: "loud"})
	assert.ErrorContains(t, err, "log level")
}
