package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Selection SelectionConfig `mapstructure:"selection" yaml:"selection"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type GitHubConfig struct {
	Token     string `mapstructure:"token" yaml:"token"`
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	Branch    string `mapstructure:"branch" yaml:"branch"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"` // Empty = api.github.com
}

type LLMConfig struct {
	Provider          string  `mapstructure:"provider" yaml:"provider"` // "gemini", "openai"
	GeminiKey         string  `mapstructure:"gemini_key" yaml:"gemini_key"`
	GeminiModel       string  `mapstructure:"gemini_model" yaml:"gemini_model"`
	OpenAIKey         string  `mapstructure:"openai_key" yaml:"openai_key"`
	OpenAIModel       string  `mapstructure:"openai_model" yaml:"openai_model"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `mapstructure:"burst" yaml:"burst"`
	MaxOutputTokens   int32   `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	RedisAddr         string  `mapstructure:"redis_addr" yaml:"redis_addr"` // Shared quota counters; empty = disabled
}

type SelectionConfig struct {
	ProxyURL        string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout" yaml:"analysis_timeout"`
	CacheSize       int           `mapstructure:"cache_size" yaml:"cache_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":3001",
			MaxBodyBytes:   10 * 1024 * 1024,
			AllowedOrigins: []string{"*"},
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
			Branch:    "main",
		},
		LLM: LLMConfig{
			Provider:        "gemini",
			GeminiModel:     "gemini-2.0-flash",
			OpenAIModel:     "gpt-4o-mini",
			Burst:           1,
			MaxOutputTokens: 1024,
		},
		Selection: SelectionConfig{
			ProxyURL:        "http://localhost:3001",
			AnalysisTimeout: 30 * time.Second,
			CacheSize:       512,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file, environment and the OS keychain
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	v.SetEnvPrefix("REPOGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".repograph")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".repograph"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyKeychain(cfg, NewKeyringManager())

	return cfg, nil
}

// setDefaults registers leaf keys so REPOGRAPH_* env vars resolve, e.g.
// REPOGRAPH_SERVER_ADDR for server.addr
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("github.rate_limit", cfg.GitHub.RateLimit)
	v.SetDefault("github.branch", cfg.GitHub.Branch)
	v.SetDefault("github.base_url", cfg.GitHub.BaseURL)
	v.SetDefault("llm.provider", cfg.LLM.Provider)
	v.SetDefault("llm.gemini_model", cfg.LLM.GeminiModel)
	v.SetDefault("llm.openai_model", cfg.LLM.OpenAIModel)
	v.SetDefault("llm.requests_per_second", cfg.LLM.RequestsPerSecond)
	v.SetDefault("llm.burst", cfg.LLM.Burst)
	v.SetDefault("llm.max_output_tokens", cfg.LLM.MaxOutputTokens)
	v.SetDefault("llm.redis_addr", cfg.LLM.RedisAddr)
	v.SetDefault("selection.proxy_url", cfg.Selection.ProxyURL)
	v.SetDefault("selection.analysis_timeout", cfg.Selection.AnalysisTimeout)
	v.SetDefault("selection.cache_size", cfg.Selection.CacheSize)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.json", cfg.Log.JSON)
	v.SetDefault("log.file", cfg.Log.File)
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".repograph", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if size := os.Getenv("MAX_BODY_BYTES"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}
	if branch := os.Getenv("GITHUB_BRANCH"); branch != "" {
		cfg.GitHub.Branch = branch
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.LLM.GeminiKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.LLM.GeminiModel = model
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.LLM.OpenAIModel = model
	}
	if rps := os.Getenv("LLM_RPS"); rps != "" {
		if f, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.LLM.RequestsPerSecond = f
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.LLM.RedisAddr = addr
	}

	if url := os.Getenv("PROXY_URL"); url != "" {
		cfg.Selection.ProxyURL = url
	}
	if secs := os.Getenv("ANALYSIS_TIMEOUT_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil {
			cfg.Selection.AnalysisTimeout = time.Duration(n) * time.Second
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// applyKeychain fills API credentials that are still empty from the OS keychain
func applyKeychain(cfg *Config, km *KeyringManager) {
	if cfg.LLM.GeminiKey != "" && cfg.LLM.OpenAIKey != "" && cfg.GitHub.Token != "" {
		return
	}
	if !km.IsAvailable() {
		return
	}
	if cfg.LLM.GeminiKey == "" {
		if key, err := km.Get(KeyringGeminiKeyItem); err == nil {
			cfg.LLM.GeminiKey = key
		}
	}
	if cfg.LLM.OpenAIKey == "" {
		if key, err := km.Get(KeyringOpenAIKeyItem); err == nil {
			cfg.LLM.OpenAIKey = key
		}
	}
	if cfg.GitHub.Token == "" {
		if token, err := km.Get(KeyringGitHubTokenItem); err == nil {
			cfg.GitHub.Token = token
		}
	}
}

// Save saves configuration to file. API keys are never written.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	llm := c.LLM
	llm.GeminiKey = ""
	llm.OpenAIKey = ""
	gh := c.GitHub
	gh.Token = ""

	v.Set("server", c.Server)
	v.Set("github", gh)
	v.Set("llm", llm)
	v.Set("selection", c.Selection)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
