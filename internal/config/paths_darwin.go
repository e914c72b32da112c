//go:build darwin

package config

import (
	"os"
	"path/filepath"
)

// On macOS settings, secrets fallback and data all live under
// ~/Library/Application Support/folio.
func appSupportDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Library", "Application Support", "folio")
	}
	return "folio-data"
}

func configDir() string { return appSupportDir() }

func defaultDataDir() string { return appSupportDir() }
