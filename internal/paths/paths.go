// Package paths locates the daybook config and data directories and the
// files kept inside them.
//
// Directory precedence:
//
//	config: --config-dir > $DAYBOOK_CONFIG_DIR > platform default
//	data:   --data-dir > config.yaml data_dir > $DAYBOOK_DATA_DIR > platform default
//
// Platform defaults follow XDG on Linux. macOS and Windows keep both under
// the user config directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Names used inside the resolved directories.
const (
	AppName        = "daybook"
	ConfigFileName = "config.yaml"
	DatabaseName   = "daybook.db"
	LogDirName     = "logs"
)

// Environment overrides.
const (
	EnvConfigDir = "DAYBOOK_CONFIG_DIR"
	EnvDataDir   = "DAYBOOK_DATA_DIR"
)

// platform is swapped in tests to exercise other operating systems.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdg describes one XDG base directory: its variable and the fallback
// below $HOME.
type xdg struct {
	env      string
	fallback []string
}

var (
	xdgConfig = xdg{env: "XDG_CONFIG_HOME", fallback: []string{".config"}}
	xdgData   = xdg{env: "XDG_DATA_HOME", fallback: []string{".local", "share"}}
)

func platformDir(base xdg) (string, error) {
	if platform.goos != "linux" {
		dir, err := platform.userConfigDir()
		if err != nil {
			return "", fmt.Errorf("locating user config dir: %w", err)
		}
		return filepath.Join(dir, AppName), nil
	}
	if dir := os.Getenv(base.env); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := platform.homeDir()
	if err != nil {
		return "", fmt.Errorf("locating home dir: %w", err)
	}
	parts := append([]string{home}, base.fallback...)
	return filepath.Join(append(parts, AppName)...), nil
}

// DefaultConfigDir returns the platform config directory for daybook.
func DefaultConfigDir() (string, error) {
	return platformDir(xdgConfig)
}

// DefaultDataDir returns the platform data directory for daybook.
func DefaultDataDir() (string, error) {
	return platformDir(xdgData)
}

// firstSet returns the absolute form of the first non-empty candidate.
func firstSet(candidates ...string) (string, bool, error) {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		abs, err := filepath.Abs(c)
		return abs, true, err
	}
	return "", false, nil
}

// ResolveConfigDir picks the config directory from the --config-dir flag,
// the environment, or the platform default.
func ResolveConfigDir(flag string) (string, error) {
	if dir, ok, err := firstSet(flag, os.Getenv(EnvConfigDir)); ok {
		return dir, err
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the data directory from the --data-dir flag, the
// data_dir config value, the environment, or the platform default.
func ResolveDataDir(flag, configured string) (string, error) {
	if dir, ok, err := firstSet(flag, configured, os.Getenv(EnvDataDir)); ok {
		return dir, err
	}
	return DefaultDataDir()
}

// ConfigFile returns the config file path inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// DatabaseFile returns the database path inside dataDir.
func DatabaseFile(dataDir string) string {
	return filepath.Join(dataDir, DatabaseName)
}

// LogDir returns the directory rotating logs are written to.
func LogDir(configDir string) string {
	return filepath.Join(configDir, LogDirName)
}
