// Package config provides configuration management for docucal.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppDir is the directory name under the user config root.
const AppDir = "docucal"

// ConfigDirectory returns the per-user config directory.
//   - Windows: %USERPROFILE%\.config\docucal
//   - Unix: ~/.config/docucal
//
// Returns "" when no home directory can be determined.
func ConfigDirectory() string {
	if runtime.GOOS == "windows" {
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, ".config", AppDir)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", AppDir)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	dir := ConfigDirectory()
	if dir == "" {
		return "docucal.ini"
	}
	return filepath.Join(dir, "config")
}

// DefaultSessionPath returns the default cookie store path.
func DefaultSessionPath() string {
	dir := ConfigDirectory()
	if dir == "" {
		return "docucal.session"
	}
	return filepath.Join(dir, "session")
}

// LogDirectory returns where the optional log file lives by default.
func LogDirectory() string {
	dir := ConfigDirectory()
	if dir == "" {
		return filepath.Join(os.TempDir(), "docucal-logs")
	}
	return filepath.Join(dir, "logs")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || (len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == '\\')) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
