package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	require.NoError(t, Init(Config{ConfigDir: configDir}))
	t.Cleanup(func() { Logger = nil })

	_, err := os.Stat(filepath.Join(configDir, "logs"))
	require.NoError(t, err, "log directory was not created")
	require.NotNil(t, Logger)
	assert.Equal(t, log.WarnLevel, Logger.GetLevel())

	Warn("import rejected row", "line", 3)
	Debug("not written")

	data, err := os.ReadFile(filepath.Join(configDir, "logs", FileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "import rejected row"))
	assert.False(t, strings.Contains(string(data), "not written"))
}

func TestInitLevels(t *testing.T) {
	t.Cleanup(func() { Logger = nil })

	require.NoError(t, Init(Config{ConfigDir: t.TempDir(), Level: "info"}))
	assert.Equal(t, log.InfoLevel, Logger.GetLevel())

	require.NoError(t, Init(Config{ConfigDir: t.TempDir(), Level: "error", Debug: true}))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel(), "debug flag wins")

	assert.Error(t, Init(Config{ConfigDir: t.TempDir(), Level: "loud"}))
}

func TestHelpersWithoutLogger(t *testing.T) {
	Logger = nil
	// Must not panic.
	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")

	Discard()
	t.Cleanup(func() { Logger = nil })
	Error("dropped")
}
