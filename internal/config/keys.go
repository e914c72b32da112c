package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

// keySpec binds one dotted config key to its Config field. check, when set,
// validates a raw value and returns its canonical form; values it rejects are
// refused by SetKey and ignored with a warning on load.
type keySpec struct {
	key     string
	typ     keyType
	env     string
	legacy  string
	secret  bool
	check   func(string) (string, error)
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "FOLIO_SERVER_PORT", legacy: "PORT",
		check:   checkPort,
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "notion.api_key", typ: kString, env: "FOLIO_NOTION_API_KEY", legacy: "NOTION_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Notion.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Notion.APIKey },
	},
	{
		key: "notion.portfolio_db", typ: kString, env: "FOLIO_NOTION_PORTFOLIO_DB", legacy: "NOTION_DATABASE_ID",
		check:   normalizeNotionID,
		apply:   func(cfg *Config, v any) { cfg.Notion.PortfolioDB = v.(string) },
		extract: func(cfg Config) any { return cfg.Notion.PortfolioDB },
	},
	{
		key: "notion.conversations_db", typ: kString, env: "FOLIO_NOTION_CONVERSATIONS_DB", legacy: "NOTION_CONVERSATIONS_DB_ID",
		check:   normalizeNotionID,
		apply:   func(cfg *Config, v any) { cfg.Notion.ConversationsDB = v.(string) },
		extract: func(cfg Config) any { return cfg.Notion.ConversationsDB },
	},
	{
		key: "notion.base_url", typ: kString, env: "FOLIO_NOTION_BASE_URL",
		check:   checkBaseURL,
		apply:   func(cfg *Config, v any) { cfg.Notion.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Notion.BaseURL },
	},
	{
		key: "notion.version", typ: kString, env: "FOLIO_NOTION_VERSION",
		apply:   func(cfg *Config, v any) { cfg.Notion.Version = v.(string) },
		extract: func(cfg Config) any { return cfg.Notion.Version },
	},
	{
		key: "llm.provider", typ: kString, env: "FOLIO_LLM_PROVIDER",
		check:   checkProvider,
		apply:   func(cfg *Config, v any) { cfg.LLM.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Provider },
	},
	{
		key: "llm.model", typ: kString, env: "FOLIO_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.gemini_api_key", typ: kString, env: "FOLIO_GEMINI_API_KEY", legacy: "GOOGLE_GEMINI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.GeminiAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.GeminiAPIKey },
	},
	{
		key: "llm.openrouter_api_key", typ: kString, env: "FOLIO_OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.OpenRouterAPIKey },
	},
	{
		key: "llm.anthropic_api_key", typ: kString, env: "FOLIO_ANTHROPIC_API_KEY", legacy: "ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.AnthropicAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.AnthropicAPIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "FOLIO_OLLAMA_BASE_URL",
		check:   checkBaseURL,
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "github.owner", typ: kString, env: "FOLIO_GITHUB_OWNER",
		check:   normalizeOwner,
		apply:   func(cfg *Config, v any) { cfg.GitHub.Owner = v.(string) },
		extract: func(cfg Config) any { return cfg.GitHub.Owner },
	},
	{
		key: "github.token", typ: kString, env: "FOLIO_GITHUB_TOKEN", legacy: "GITHUB_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.GitHub.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.GitHub.Token },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FOLIO_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "cache.ttl", typ: kString, env: "FOLIO_CACHE_TTL",
		check:   checkDuration,
		apply:   func(cfg *Config, v any) { cfg.Cache.TTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.TTL },
	},
	{
		key: "persona.file", typ: kString, env: "FOLIO_PERSONA_FILE",
		apply:   func(cfg *Config, v any) { cfg.Persona.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Persona.File },
	},
	{
		key: "api.token", typ: kString, env: "FOLIO_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "log.level", typ: kString, env: "FOLIO_LOG_LEVEL",
		check:   checkLogLevel,
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.applyRaw(cfg, v, "config key "+s.key)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.applyRaw(cfg, strconv.Itoa(v), "config key "+s.key)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if raw := lookupEnv(s); raw != "" {
			s.applyRaw(cfg, raw, "env var "+s.env)
		}
	}
}

// parse checks raw and converts it to the key's type.
func (s keySpec) parse(raw string) (any, error) {
	if s.check != nil {
		v, err := s.check(raw)
		if err != nil {
			return nil, err
		}
		raw = v
	}
	if s.typ == kInt {
		return strconv.Atoi(strings.TrimSpace(raw))
	}
	return raw, nil
}

func (s keySpec) applyRaw(cfg *Config, raw, source string) {
	v, err := s.parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v. Using default value.\n", source, raw, err)
		return
	}
	s.apply(cfg, v)
}

func specFor(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// lookupEnv prefers the FOLIO_* variable and falls back to the legacy name.
func lookupEnv(s keySpec) string {
	if s.env != "" {
		if v := os.Getenv(s.env); v != "" {
			return v
		}
	}
	if s.legacy != "" {
		return os.Getenv(s.legacy)
	}
	return ""
}
