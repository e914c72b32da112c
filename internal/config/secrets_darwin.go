//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	keychainService = "folio"

	// errSecItemNotFound is the exit status of `security` for a missing item.
	errSecItemNotFound = 44
)

// keychainStore reads generic passwords from the login Keychain, one item
// per config key under service "folio".
type keychainStore struct{}

func platformSecrets() secretStore { return keychainStore{} }

func (keychainStore) Secret(key string) (string, bool, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", keychainService, "-a", key, "-w").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == errSecItemNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("keychain lookup for %s: %w", key, err)
	}
	v := strings.TrimSpace(string(out))
	return v, v != "", nil
}

func secretHint(key string) string {
	return fmt.Sprintf("security add-generic-password -s %s -a %s -w", keychainService, key)
}
