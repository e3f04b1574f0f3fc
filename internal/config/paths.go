package config

import (
	"os"
	"path/filepath"
)

// GetTetherHome returns TETHER_HOME or ~/.tether default
func GetTetherHome() string {
	tetherHome := os.Getenv("TETHER_HOME")
	if tetherHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".tether"
		}
		return filepath.Join(homeDir, ".tether")
	}
	return ExpandPath(tetherHome)
}

// GetDBPath returns $TETHER_HOME/state.db
func GetDBPath() string {
	return filepath.Join(GetTetherHome(), "state.db")
}

// GetSettingsPath returns $TETHER_HOME/settings.json
func GetSettingsPath() string {
	return filepath.Join(GetTetherHome(), "settings.json")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				return homeDir
			}
			return filepath.Join(homeDir, path[1:])
		}
	}
	return path
}
