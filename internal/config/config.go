package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Dataset DatasetConfig `yaml:"dataset"`
	Feed    FeedConfig    `yaml:"feed"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	CORS    CORSConfig    `yaml:"cors"`
	Chat    ChatConfig    `yaml:"chat"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type LogConfig struct {
	Level  string        `yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	Format string        `yaml:"format" validate:"oneof=json text"`
	File   LogFileConfig `yaml:"file"`
}

type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

type DatasetConfig struct {
	Source string `yaml:"source" validate:"required"`
	Format string `yaml:"format" validate:"omitempty,oneof=csv sqlite"`
	Table  string `yaml:"table"`
}

type FeedConfig struct {
	DefaultLimit int `yaml:"default_limit" validate:"min=1"`
}

type ProxyConfig struct {
	BaseURL         string            `yaml:"base_url" validate:"required,url"`
	TimeoutMs       int               `yaml:"timeout_ms" validate:"min=1"`
	UserAgent       string            `yaml:"user_agent" validate:"required"`
	DefaultInterval string            `yaml:"default_interval" validate:"required"`
	DefaultRange    string            `yaml:"default_range" validate:"required"`
	Aliases         map[string]string `yaml:"aliases"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins" validate:"min=1,dive,eq=*|url"`
	MaxAgeSec    int      `yaml:"max_age_sec" validate:"gte=0"`
}

type ChatConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms" validate:"gte=0"`
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8000},
		Log:    LogConfig{Level: "info", Format: "json"},
		Dataset: DatasetConfig{
			Source: "data/data.csv",
			Table:  "bars",
		},
		Feed: FeedConfig{DefaultLimit: 50},
		Proxy: ProxyConfig{
			BaseURL:         "https://query1.finance.yahoo.com",
			TimeoutMs:       30000,
			UserAgent:       browserUserAgent,
			DefaultInterval: "1m",
			DefaultRange:    "1d",
			Aliases: map[string]string{
				"SPX":    "^GSPC",
				"SP500":  "^GSPC",
				"SPX500": "^GSPC",
			},
		},
		CORS: CORSConfig{
			AllowOrigins: []string{
				"http://localhost:8080",
				"http://localhost:8081",
				"http://localhost:3000",
				"http://localhost:5173",
			},
			MaxAgeSec: 3600,
		},
		Chat: ChatConfig{
			Enabled:   false,
			Model:     "gemini-2.5-flash",
			TimeoutMs: 15000,
		},
	}
}

// Load reads .env (if present), the YAML file at path, and the environment,
// in that order of increasing precedence. A missing YAML file is not an
// error; the defaults and environment are enough to run.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("DATASET_PATH"); v != "" {
		cfg.Dataset.Source = v
	}
	if v := os.Getenv("QUOTE_BASE_URL"); v != "" {
		cfg.Proxy.BaseURL = v
	}
	if v := os.Getenv("CORS_ALLOW_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORS.AllowOrigins = origins
	}
	if v := os.Getenv("CHAT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_ENABLED: %q", v)
		}
		cfg.Chat.Enabled = b
	}
	return nil
}
