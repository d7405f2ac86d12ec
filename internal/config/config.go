package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	LLM        LLMConfig
	OpenAI     OpenAIConfig
	OpenRouter OpenRouterConfig
	Ollama     OllamaConfig
	Search     SearchConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Pipeline   PipelineConfig
	Prompt     PromptConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LLMConfig struct {
	// DefaultProvider is used when a request does not carry a model selector.
	DefaultProvider string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type OpenRouterConfig struct {
	APIKey string
	Model  string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type SearchConfig struct {
	TavilyAPIKey string
	BaseURL      string
	CacheTTL     time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	DataDir      string
	MaxOpenConns int
	AutoMigrate  bool
}

type PipelineConfig struct {
	StageTimeout              time.Duration
	SuppressPhrasesOnEvidence bool
}

type PromptConfig struct {
	ProductName string
	ProductURL  string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8081,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o",
		},
		OpenRouter: OpenRouterConfig{
			Model: "openai/gpt-4o",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1",
		},
		Search: SearchConfig{
			BaseURL:  "https://api.tavily.com",
			CacheTTL: 6 * time.Hour,
		},
		Storage: StorageConfig{
			Driver:       "mysql",
			Host:         "localhost",
			Port:         3306,
			User:         "root",
			Database:     "company_analytics",
			DataDir:      defaultDataDir(),
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Pipeline: PipelineConfig{
			StageTimeout:              3 * time.Minute,
			SuppressPhrasesOnEvidence: true,
		},
		Prompt: PromptConfig{
			ProductName: "Wazo Pulse",
			ProductURL:  "https://wazopulse.com",
		},
		RateLimit: RateLimitConfig{
			RPS:   2,
			Burst: 5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend, a .env file in the
// working directory, and environment variables, in increasing precedence.
//
// The file backend lives at $XDG_CONFIG_HOME/company-analytics/config.json.
// Secrets (API keys, passwords) are only read from the environment.
//
// Missing provider credentials never fail Load; see Config.Warnings.
func Load() (Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("invalid storage.driver %q: want mysql or sqlite", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Pipeline.StageTimeout < 0 {
		return fmt.Errorf("invalid pipeline.stage_timeout %s", c.Pipeline.StageTimeout)
	}
	return nil
}

// Warnings lists configuration gaps that disable a provider without
// preventing startup.
func (c Config) Warnings() []string {
	var w []string
	if c.OpenAI.APIKey == "" {
		w = append(w, "OPENAI_API_KEY not set; openai provider disabled")
	}
	if c.OpenRouter.APIKey == "" {
		w = append(w, "OPENROUTER_API_KEY not set; openrouter provider disabled")
	}
	if c.Search.TavilyAPIKey == "" {
		w = append(w, "TAVILY_API_KEY not set; web search disabled, pipelines run without live data")
	}
	return w
}

// MySQLDSN builds a go-sql-driver DSN from the storage settings.
func (s StorageConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		s.User, s.Password, s.Host, s.Port, s.Database)
}

// ListenAddr is the host:port the HTTP server binds.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL is the URL CLI commands use to reach a running server.
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	u := url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%d", host, s.Port)}
	return u.String()
}
