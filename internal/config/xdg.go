package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const appName = "vtds-mock"

// XDGDirs holds the resolved XDG-compliant directory paths for vtds-mock.
type XDGDirs struct {
	// Config is ~/.config/vtds-mock  (XDG_CONFIG_HOME)
	Config string
	// State is ~/.local/state/vtds-mock  (XDG_STATE_HOME)
	State string
}

// xdgBase returns the XDG base directory, falling back to the given default
// when the environment variable is unset or empty.
func xdgBase(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, fallback)
}

// DefaultXDGDirs returns the resolved XDG directory set for vtds-mock using
// the current environment and home directory.
func DefaultXDGDirs() XDGDirs {
	return XDGDirs{
		Config: filepath.Join(xdgBase("XDG_CONFIG_HOME", ".config"), appName),
		State:  filepath.Join(xdgBase("XDG_STATE_HOME", ".local/state"), appName),
	}
}

// ConfigFile returns the path to the user overlay file.
func (d XDGDirs) ConfigFile() string {
	return filepath.Join(d.Config, "config.yaml")
}

// BuildDir returns the scratch directory handed to the provider layer.
func (d XDGDirs) BuildDir() string {
	return filepath.Join(d.State, "build")
}

// EnsureDirs creates all vtds-mock XDG directories that do not yet exist.
// Directories are created with mode 0700.
func (d XDGDirs) EnsureDirs() error {
	for _, dir := range []string{d.Config, d.BuildDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// UserOverlay reads the user overlay file. A missing file yields nil data
// and no error.
func (d XDGDirs) UserOverlay() ([]byte, error) {
	data, err := os.ReadFile(d.ConfigFile())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user overlay %s: %w", d.ConfigFile(), err)
	}
	return data, nil
}
