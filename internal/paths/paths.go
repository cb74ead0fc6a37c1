// Package paths resolves configuration, index data, and archive root
// locations for the chronicle tools.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// CWD-relative directory names used when no override is active.
const (
	DefaultConfigDirName   = ".chronicle"
	DefaultDataDirName     = ".chronicle-db"
	DefaultArchiveRootName = "archive"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir   = "CHRONICLE_CONFIG_DIR"
	EnvDataDir     = "CHRONICLE_DATA_DIR"
	EnvArchiveRoot = "CHRONICLE_ARCHIVE_ROOT"
)

// platformDir holds platform-detection functions that can be overridden in
// tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration
// directory.
//
// Linux:   $XDG_CONFIG_HOME/chronicle (fallback ~/.config/chronicle)
// macOS:   ~/Library/Application Support/chronicle
// Windows: %APPDATA%/chronicle
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "chronicle"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "chronicle"), nil
	default:
		// macOS and Windows use os.UserConfigDir which returns
		// ~/Library/Application Support on macOS and %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "chronicle"), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > CHRONICLE_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the index data directory following the precedence
// chain: flag > config.yaml data_dir > CHRONICLE_DATA_DIR env >
// $(CWD)/.chronicle-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	return resolveDir(flag, configValue, EnvDataDir, DefaultDataDirName)
}

// ResolveArchiveRoot returns the archive tree root following the precedence
// chain: flag > config.yaml archive_root > CHRONICLE_ARCHIVE_ROOT env >
// $(CWD)/archive.
func ResolveArchiveRoot(flag, configValue string) (string, error) {
	return resolveDir(flag, configValue, EnvArchiveRoot, DefaultArchiveRootName)
}

func resolveDir(flag, configValue, envName, defaultName string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	if env := os.Getenv(envName); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, defaultName), nil
}
