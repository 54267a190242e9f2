package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQLite = "sqlite"

	APITypeOpenAI = "openai"
	APITypeAzure  = "azure"

	TokenCounterTiktoken = "tiktoken"
	TokenCounterEstimate = "estimate"
)

type Vault struct {
	Path         string `yaml:"path" env:"NOTECHAT_VAULT" env-default:"."`
	HistoryDir   string `yaml:"history_dir" env:"NOTECHAT_HISTORY_DIR" env-default:"chat-history"`
	UploadsDir   string `yaml:"uploads_dir" env:"NOTECHAT_UPLOADS_DIR" env-default:"uploads"`
	SettingsPath string `yaml:"settings_path" env:"NOTECHAT_SETTINGS" env-default:".notechat/settings.yaml"`
}

type OpenAI struct {
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `yaml:"open_ai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	APIType         string        `yaml:"api_type" env:"OPENAI_API_TYPE" env-default:"openai"`
	AzureDeployment string        `yaml:"azure_deployment" env:"OPENAI_AZURE_DEPLOYMENT"`
	Timeout         time.Duration `yaml:"timeout" env:"OPENAI_TIMEOUT" env-default:"60s"`
	TokenCounter    string        `yaml:"token_counter" env:"NOTECHAT_TOKEN_COUNTER" env-default:"tiktoken"`
}

type Redis struct {
	Endpoint string `yaml:"endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type SQLite struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:".notechat/conversations.db"`
}

type Storage struct {
	Type   string `yaml:"type" env:"NOTECHAT_STORAGE" env-default:"memory"`
	Redis  Redis  `yaml:"redis"`
	SQLite SQLite `yaml:"sqlite"`
}

type Config struct {
	Vault   Vault   `yaml:"vault"`
	OpenAI  OpenAI  `yaml:"openai"`
	Storage Storage `yaml:"storage"`
}

// LoadConfig reads cfgPath when it exists and then applies the environment.
// An empty or missing path leaves the environment and defaults only.
func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err == nil {
			if err = cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", cfgPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", cfgPath, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageTypeMemory, StorageTypeRedis, StorageTypeSQLite:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	switch c.OpenAI.APIType {
	case APITypeOpenAI:
	case APITypeAzure:
		if c.OpenAI.AzureDeployment == "" {
			return errors.New("azure api type requires azure_deployment")
		}
	default:
		return fmt.Errorf("unknown api type %q", c.OpenAI.APIType)
	}
	switch c.OpenAI.TokenCounter {
	case TokenCounterTiktoken, TokenCounterEstimate, "":
	default:
		return fmt.Errorf("unknown token counter %q", c.OpenAI.TokenCounter)
	}
	if c.OpenAI.Timeout <= 0 {
		return errors.New("openai timeout must be positive")
	}
	return nil
}

// SettingsFile is the absolute location of the user settings file.
func (c *Config) SettingsFile() string {
	if filepath.IsAbs(c.Vault.SettingsPath) {
		return c.Vault.SettingsPath
	}
	return filepath.Join(c.Vault.Path, c.Vault.SettingsPath)
}

// SQLiteFile resolves the sqlite database path against the vault root.
func (c *Config) SQLiteFile() string {
	if filepath.IsAbs(c.Storage.SQLite.Path) {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.Vault.Path, c.Storage.SQLite.Path)
}
