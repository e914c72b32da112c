package config

import (
	"fmt"
	"strconv"
)

// KeyInfo describes a config key for display. Secret values are never
// shown; Value only says whether one is set.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	Secret bool
}

// ShowAll returns every key with its effective value.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		ki := KeyInfo{Key: s.key, EnvVar: s.env, Secret: s.secret}
		switch {
		case !s.secret:
			ki.Value = fmt.Sprintf("%v", s.extract(cfg))
		case s.extract(cfg) != "":
			ki.Value = "(set)"
		default:
			ki.Value = "(not set)"
		}
		result = append(result, ki)
	}
	return result
}

// SetKey validates value and writes it to the settings file. It returns the
// value as stored, e.g. a Notion URL reduced to its database id.
func SetKey(key, value string) (string, error) {
	return setKey(newPlatformBackend(), key, value)
}

func setKey(b Backend, key, value string) (string, error) {
	s, err := settable(key)
	if err != nil {
		return "", err
	}
	v, err := s.parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid value for %s: %w", key, err)
	}
	switch v := v.(type) {
	case int:
		return strconv.Itoa(v), b.SetInt(key, v)
	default:
		str := v.(string)
		return str, b.SetString(key, str)
	}
}

// UnsetKey removes a key from the settings file so its default applies again.
func UnsetKey(key string) error {
	return unsetKey(newPlatformBackend(), key)
}

func unsetKey(b Backend, key string) error {
	if _, err := settable(key); err != nil {
		return err
	}
	return b.Delete(key)
}

func settable(key string) (keySpec, error) {
	s, ok := specFor(key)
	switch {
	case !ok:
		return keySpec{}, fmt.Errorf("unknown config key: %q", key)
	case s.secret:
		return keySpec{}, fmt.Errorf("%s is a secret and is not kept in the settings file; set %s or %s", key, s.env, secretHint(key))
	}
	return s, nil
}

// ValidKeys returns the keys SetKey accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
