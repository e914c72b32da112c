package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Backend persists non-secret settings between runs.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// ConfigFile is the settings document `folio config set` writes.
func ConfigFile() string {
	return filepath.Join(configDir(), "config.json")
}

func newPlatformBackend() Backend {
	return openFileBackend(ConfigFile())
}

// fileBackend keeps settings in one JSON document grouped by the section
// part of each dotted key:
//
//	{"server": {"port": 8000}, "notion": {"portfolio_db": "..."}}
type fileBackend struct {
	path string
	data map[string]map[string]any
}

func openFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, data: make(map[string]map[string]any)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(raw, &b.data); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			b.data = make(map[string]map[string]any)
		}
	}
	return b
}

func splitKey(key string) (section, name string) {
	section, name, _ = strings.Cut(key, ".")
	return section, name
}

func (b *fileBackend) lookup(key string) (any, bool) {
	section, name := splitKey(key)
	v, ok := b.data[section][name]
	return v, ok
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return "", false, nil
	}
	if s, ok := v.(string); ok {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case float64:
		if val != math.Trunc(val) || val < math.MinInt32 || val > math.MaxInt32 {
			return 0, true, fmt.Errorf("%s: %v is not an integer", key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, true, fmt.Errorf("%s: %w", key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: want a number, got %T", key, v)
	}
}

func (b *fileBackend) SetString(key, val string) error { return b.set(key, val) }

func (b *fileBackend) SetInt(key string, val int) error { return b.set(key, val) }

func (b *fileBackend) set(key string, v any) error {
	section, name := splitKey(key)
	if b.data[section] == nil {
		b.data[section] = make(map[string]any)
	}
	b.data[section][name] = v
	return b.save()
}

// Delete removes a key, and its section once empty.
func (b *fileBackend) Delete(key string) error {
	section, name := splitKey(key)
	delete(b.data[section], name)
	if len(b.data[section]) == 0 {
		delete(b.data, section)
	}
	return b.save()
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	raw, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, append(raw, '\n'), 0o600)
}
