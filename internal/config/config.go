package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Notion  NotionConfig
	LLM     LLMConfig
	Ollama  OllamaConfig
	GitHub  GitHubConfig
	Storage StorageConfig
	Cache   CacheConfig
	Persona PersonaConfig
	API     APIConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type NotionConfig struct {
	APIKey          string
	PortfolioDB     string
	ConversationsDB string
	BaseURL         string
	Version         string
}

type LLMConfig struct {
	Provider         string
	Model            string
	GeminiAPIKey     string
	OpenRouterAPIKey string
	AnthropicAPIKey  string
}

type OllamaConfig struct {
	BaseURL string
}

type GitHubConfig struct {
	Owner string
	Token string
}

type StorageConfig struct {
	DataDir string
}

type CacheConfig struct {
	TTL string
}

type PersonaConfig struct {
	File string
}

type APIConfig struct {
	Token string
}

type LogConfig struct {
	Level string
}

const defaultCacheTTL = 5 * time.Minute

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Notion: NotionConfig{
			BaseURL: "https://api.notion.com/v1",
			Version: "2022-06-28",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Cache: CacheConfig{
			TTL: defaultCacheTTL.String(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in three layers, later ones winning: defaults,
// the settings file at ConfigFile, and environment variables (FOLIO_*, then
// the legacy unprefixed names). Secrets are never read from the settings
// file. A secret the environment leaves empty is looked up in the platform
// secret store: the login Keychain (service "folio") on macOS, SecretsFile
// elsewhere.
//
// Load never fails for absent store or model credentials: the components
// that need them report a *MissingError.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), platformSecrets())
}

// secretStore holds credentials outside the settings file, one per config key.
type secretStore interface {
	Secret(key string) (val string, ok bool, err error)
}

func loadWith(b Backend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	return cfg, nil
}

// applySecrets fills secrets still empty after env overrides. A broken
// store is reported once and otherwise ignored.
func applySecrets(cfg *Config, secrets secretStore) {
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if cur, _ := s.extract(*cfg).(string); cur != "" {
			continue
		}
		v, ok, err := secrets.Secret(s.key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] secret store unavailable: %v\n", err)
			return
		}
		if ok {
			s.apply(cfg, v)
		}
	}
}

// CacheTTL parses Cache.TTL, falling back to the default on a bad value.
func (c Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d < 0 {
		return defaultCacheTTL
	}
	return d
}

// LogLevel maps Log.Level onto a slog level; unknown values mean info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
