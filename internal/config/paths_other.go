//go:build !darwin

package config

import (
	"os"
	"path/filepath"
)

// xdgDir resolves an XDG base directory, falling back to home/rel.
func xdgDir(env, rel string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "folio")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, rel, "folio")
	}
	return "folio-data"
}

func configDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

func defaultDataDir() string { return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")) }
