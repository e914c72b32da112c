package config

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// mockSecrets is an in-memory secretStore keyed by config key.
type mockSecrets struct {
	values map[string]string
	err    error
	calls  int
}

func (m *mockSecrets) Secret(key string) (string, bool, error) {
	m.calls++
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// mapBackend is an in-memory Backend.
type mapBackend map[string]string

func (m mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return 0, true, err
	}
	return i, true, nil
}

func (m mapBackend) SetString(key, val string) error { m[key] = val; return nil }
func (m mapBackend) SetInt(key string, val int) error {
	m[key] = fmt.Sprint(val)
	return nil
}
func (m mapBackend) Delete(key string) error { delete(m, key); return nil }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
		if s.legacy != "" {
			t.Setenv(s.legacy, "")
		}
	}
}

// TestDefaults verifies all default values are applied with an empty backend.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(mapBackend{}, &mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Notion.BaseURL != "https://api.notion.com/v1" {
		t.Errorf("Notion.BaseURL = %q", cfg.Notion.BaseURL)
	}
	if cfg.Notion.Version != "2022-06-28" {
		t.Errorf("Notion.Version = %q", cfg.Notion.Version)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("LLM.Provider = %q, want gemini", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.CacheTTL() != 5*time.Minute {
		t.Errorf("CacheTTL() = %v, want 5m", cfg.CacheTTL())
	}
	if cfg.Notion.APIKey != "" {
		t.Errorf("Notion.APIKey = %q, want empty", cfg.Notion.APIKey)
	}
}

// TestBackendValues verifies that non-secret keys are read from the backend.
func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := mapBackend{
		"server.port":             "9100",
		"notion.portfolio_db":     "1a2b3c4d5e6f47a8b9c0d1e2f3a4b5c6",
		"notion.conversations_db": "https://www.notion.so/ada/Visitors-0f5c2d9e8b7a46c5a4b3c2d1e0f9a8b7?v=123",
		"llm.provider":            "ollama",
		"cache.ttl":               "90s",
		"log.level":               "debug",
		// secrets are never read from the backend
		"notion.api_key": "from-file",
	}

	cfg, err := loadWith(b, &mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Notion.PortfolioDB != "1a2b3c4d-5e6f-47a8-b9c0-d1e2f3a4b5c6" {
		t.Errorf("Notion.PortfolioDB = %q", cfg.Notion.PortfolioDB)
	}
	if cfg.Notion.ConversationsDB != "0f5c2d9e-8b7a-46c5-a4b3-c2d1e0f9a8b7" {
		t.Errorf("Notion.ConversationsDB = %q", cfg.Notion.ConversationsDB)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("LLM.Provider = %q", cfg.LLM.Provider)
	}
	if cfg.CacheTTL() != 90*time.Second {
		t.Errorf("CacheTTL() = %v, want 90s", cfg.CacheTTL())
	}
	if cfg.Notion.APIKey != "" {
		t.Errorf("Notion.APIKey = %q, secrets must not come from the backend", cfg.Notion.APIKey)
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("FOLIO_NOTION_PORTFOLIO_DB", "11111111222233334444555555555555")
	t.Setenv("FOLIO_NOTION_API_KEY", "env-key")
	t.Setenv("FOLIO_SERVER_PORT", "not-a-number")
	t.Setenv("FOLIO_LLM_PROVIDER", "Ollama")

	b := mapBackend{
		"notion.portfolio_db": "99999999888877776666555555555555",
		"log.level":           "loud",
	}
	cfg, err := loadWith(b, &mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Notion.PortfolioDB != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("Notion.PortfolioDB = %q, want the env id", cfg.Notion.PortfolioDB)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("LLM.Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default on invalid value", cfg.Log.Level)
	}
	if cfg.Notion.APIKey != "env-key" {
		t.Errorf("Notion.APIKey = %q, want env-key", cfg.Notion.APIKey)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default on unparsable env", cfg.Server.Port)
	}
}

// TestLegacyEnvNames verifies the unprefixed variable names are honoured and
// lose to the FOLIO_* names.
func TestLegacyEnvNames(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOTION_API_KEY", "legacy-key")
	t.Setenv("NOTION_DATABASE_ID", "aaaaaaaabbbbccccddddeeeeeeeeeeee")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "legacy-gemini")
	t.Setenv("FOLIO_NOTION_PORTFOLIO_DB", "12345678123412341234123456789abc")

	cfg, err := loadWith(mapBackend{}, &mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Notion.APIKey != "legacy-key" {
		t.Errorf("Notion.APIKey = %q", cfg.Notion.APIKey)
	}
	if cfg.LLM.GeminiAPIKey != "legacy-gemini" {
		t.Errorf("LLM.GeminiAPIKey = %q", cfg.LLM.GeminiAPIKey)
	}
	if cfg.Notion.PortfolioDB != "12345678-1234-1234-1234-123456789abc" {
		t.Errorf("Notion.PortfolioDB = %q, want the FOLIO_ id", cfg.Notion.PortfolioDB)
	}
}

// TestSecretStoreFallback verifies the secret store is consulted only for
// secrets absent from the environment.
func TestSecretStoreFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("FOLIO_GITHUB_TOKEN", "env-token")

	secrets := &mockSecrets{values: map[string]string{
		"notion.api_key": "stored-secret",
		"github.token":   "stored-token",
	}}
	cfg, err := loadWith(mapBackend{}, secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Notion.APIKey != "stored-secret" {
		t.Errorf("Notion.APIKey = %q, want stored-secret", cfg.Notion.APIKey)
	}
	if cfg.GitHub.Token != "env-token" {
		t.Errorf("GitHub.Token = %q, want env-token", cfg.GitHub.Token)
	}
}

func TestSecretStoreFailureIsReportedOnce(t *testing.T) {
	clearEnv(t)
	secrets := &mockSecrets{err: errors.New("locked")}

	cfg, err := loadWith(mapBackend{}, secrets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secrets.calls != 1 {
		t.Errorf("secret store called %d times, want 1", secrets.calls)
	}
	if cfg.Notion.APIKey != "" {
		t.Errorf("Notion.APIKey = %q", cfg.Notion.APIKey)
	}
}

func TestMissingError(t *testing.T) {
	err := Missing("notion.api_key", "notion.portfolio_db")

	if !errors.Is(err, ErrMissing) {
		t.Fatal("errors.Is(err, ErrMissing) = false")
	}
	var me *MissingError
	if !errors.As(err, &me) || len(me.Keys) != 2 {
		t.Fatalf("errors.As = %v, keys %v", errors.As(err, &me), me)
	}

	msg := err.Error()
	for _, want := range []string{
		"missing required config",
		"FOLIO_NOTION_API_KEY",
		"folio config set notion.portfolio_db <value>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestCacheTTLInvalid(t *testing.T) {
	cfg := Config{Cache: CacheConfig{TTL: "soon"}}
	if got := cfg.CacheTTL(); got != 5*time.Minute {
		t.Errorf("CacheTTL() = %v, want default", got)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Notion.APIKey = "secret"

	got := map[string]string{}
	for _, ki := range ShowAll(cfg) {
		if ki.Value == "secret" {
			t.Errorf("ShowAll exposed secret key %s", ki.Key)
		}
		got[ki.Key] = ki.Value
	}
	if got["notion.api_key"] != "(set)" {
		t.Errorf("notion.api_key = %q, want (set)", got["notion.api_key"])
	}
	if got["github.token"] != "(not set)" {
		t.Errorf("github.token = %q, want (not set)", got["github.token"])
	}
	if got["server.port"] != "8000" {
		t.Errorf("server.port = %q", got["server.port"])
	}
}

func TestValidKeysExcludesSecrets(t *testing.T) {
	keys := ValidKeys()
	for _, k := range keys {
		if k == "api.token" || k == "llm.gemini_api_key" {
			t.Errorf("ValidKeys contains secret %s", k)
		}
	}
	if len(keys) == 0 {
		t.Fatal("ValidKeys is empty")
	}
}
