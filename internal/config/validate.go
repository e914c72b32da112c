package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Providers lists the accepted llm.provider values.
var Providers = []string{"gemini", "openrouter", "ollama", "anthropic"}

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

func checkPort(v string) (string, error) {
	p, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return "", fmt.Errorf("not a port number: %w", err)
	}
	if p < 1 || p > 65535 {
		return "", fmt.Errorf("port %d out of range 1-65535", p)
	}
	return strconv.Itoa(p), nil
}

func checkProvider(v string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(v))
	if !slices.Contains(Providers, p) {
		return "", fmt.Errorf("unknown provider %q (want one of %s)", v, strings.Join(Providers, ", "))
	}
	return p, nil
}

func checkLogLevel(v string) (string, error) {
	l := strings.ToLower(strings.TrimSpace(v))
	if !slices.Contains(logLevels, l) {
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", v)
	}
	return l, nil
}

func checkDuration(v string) (string, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return "", err
	}
	if d < 0 {
		return "", fmt.Errorf("duration %s is negative", d)
	}
	return d.String(), nil
}

func checkBaseURL(v string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%q is not an http(s) URL", v)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

var notionIDPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{12}`)

// normalizeNotionID accepts a database id with or without dashes, or the
// database's share URL, and returns the dashed id.
func normalizeNotionID(v string) (string, error) {
	s := strings.TrimSpace(v)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	ids := notionIDPattern.FindAllString(s, -1)
	if len(ids) == 0 {
		return "", fmt.Errorf("%q is not a Notion database id or URL", v)
	}
	id, err := uuid.Parse(strings.ReplaceAll(ids[len(ids)-1], "-", ""))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// normalizeOwner accepts a login, an @login or a profile URL.
func normalizeOwner(v string) (string, error) {
	s := strings.TrimSpace(v)
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = strings.Trim(u.Path, "/")
	}
	s = strings.TrimPrefix(s, "@")
	if s == "" || strings.ContainsAny(s, "/ \t") {
		return "", fmt.Errorf("%q is not a GitHub user or organization", v)
	}
	return s, nil
}
