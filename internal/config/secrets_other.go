//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SecretsFile holds credentials as a JSON object keyed by config key:
//
//	{"notion.api_key": "secret_...", "github.token": "ghp_..."}
func SecretsFile() string {
	return filepath.Join(configDir(), "secrets.json")
}

type secretsFile struct {
	path string
}

func platformSecrets() secretStore { return secretsFile{path: SecretsFile()} }

// Secret refuses a file other users can read.
func (f secretsFile) Secret(key string) (string, bool, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", false, fmt.Errorf("%s has mode %04o; run chmod 600 on it", f.path, perm)
	}

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return "", false, err
	}
	var secrets map[string]string
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return "", false, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	v := strings.TrimSpace(secrets[key])
	return v, v != "", nil
}

func secretHint(key string) string {
	return fmt.Sprintf("add %q to %s", key, SecretsFile())
}
