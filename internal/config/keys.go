package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "llm.default_provider", typ: kString, env: "LLM_DEFAULT_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.LLM.DefaultProvider = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.DefaultProvider },
	},
	{
		key: "openai.api_key", typ: kString, env: "OPENAI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.model", typ: kString, env: "OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Model },
	},
	{
		key: "openrouter.api_key", typ: kString, env: "OPENROUTER_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.APIKey },
	},
	{
		key: "openrouter.model", typ: kString, env: "OPENROUTER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenRouter.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenRouter.Model },
	},
	{
		key: "ollama.base_url", typ: kString, env: "OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "search.tavily_api_key", typ: kString, env: "TAVILY_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Search.TavilyAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.TavilyAPIKey },
	},
	{
		key: "search.base_url", typ: kString, env: "TAVILY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Search.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.BaseURL },
	},
	{
		key: "search.cache_ttl", typ: kDuration, env: "SEARCH_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Search.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Search.CacheTTL },
	},
	{
		key: "redis.addr", typ: kString, env: "REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Redis.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Addr },
	},
	{
		key: "redis.password", typ: kString, env: "REDIS_PASSWORD",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Redis.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Password },
	},
	{
		key: "redis.db", typ: kInt, env: "REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Redis.DB = v.(int) },
		extract: func(cfg Config) any { return cfg.Redis.DB },
	},
	{
		key: "storage.driver", typ: kString, env: "DB_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.host", typ: kString, env: "DB_HOST",
		apply:   func(cfg *Config, v any) { cfg.Storage.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Host },
	},
	{
		key: "storage.port", typ: kInt, env: "DB_PORT",
		apply:   func(cfg *Config, v any) { cfg.Storage.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.Port },
	},
	{
		key: "storage.user", typ: kString, env: "DB_USER",
		apply:   func(cfg *Config, v any) { cfg.Storage.User = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.User },
	},
	{
		key: "storage.password", typ: kString, env: "DB_PASSWORD",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Storage.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Password },
	},
	{
		key: "storage.database", typ: kString, env: "DB_DATABASE",
		apply:   func(cfg *Config, v any) { cfg.Storage.Database = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Database },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DB_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.max_open_conns", typ: kInt, env: "DB_MAX_OPEN_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Storage.MaxOpenConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.MaxOpenConns },
	},
	{
		key: "storage.auto_migrate", typ: kBool, env: "DB_AUTO_MIGRATE",
		apply:   func(cfg *Config, v any) { cfg.Storage.AutoMigrate = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.AutoMigrate },
	},
	{
		key: "pipeline.stage_timeout", typ: kDuration, env: "PIPELINE_STAGE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.StageTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.StageTimeout },
	},
	{
		key: "pipeline.suppress_phrases_on_evidence", typ: kBool, env: "PIPELINE_SUPPRESS_PHRASES_ON_EVIDENCE",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.SuppressPhrasesOnEvidence = v.(bool) },
		extract: func(cfg Config) any { return cfg.Pipeline.SuppressPhrasesOnEvidence },
	},
	{
		key: "prompt.product_name", typ: kString, env: "PRODUCT_NAME",
		apply:   func(cfg *Config, v any) { cfg.Prompt.ProductName = v.(string) },
		extract: func(cfg Config) any { return cfg.Prompt.ProductName },
	},
	{
		key: "prompt.product_url", typ: kString, env: "PRODUCT_URL",
		apply:   func(cfg *Config, v any) { cfg.Prompt.ProductURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Prompt.ProductURL },
	},
	{
		key: "ratelimit.rps", typ: kFloat, env: "RATE_LIMIT_RPS",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.RPS = v.(float64) },
		extract: func(cfg Config) any { return cfg.RateLimit.RPS },
	},
	{
		key: "ratelimit.burst", typ: kInt, env: "RATE_LIMIT_BURST",
		apply:   func(cfg *Config, v any) { cfg.RateLimit.Burst = v.(int) },
		extract: func(cfg Config) any { return cfg.RateLimit.Burst },
	},
	{
		key: "log.level", typ: kString, env: "LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parse converts a raw string into the key's typed value.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func (t keyType) String() string {
	switch t {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kFloat:
		return "float"
	case kDuration:
		return "duration"
	default:
		return "string"
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}
		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", s.typ, s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typ, s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
