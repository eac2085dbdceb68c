// Package app assembles configuration, storage, and the bot controller into
// a runnable Telegram application.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "todobridge/core/config"
	coredatabase "todobridge/core/database"
)

// Storage backends for session persistence.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// TodoistConfig holds Todoist API client settings.
type TodoistConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"TODOIST_BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"TODOIST_TIMEOUT_SECONDS"`
}

// StorageConfig selects where sessions are persisted.
type StorageConfig struct {
	Backend string `yaml:"backend" envconfig:"STORAGE_BACKEND"`
	File    string `yaml:"file" envconfig:"STORAGE_FILE"`
}

// Config is the full application configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Todoist  TodoistConfig       `yaml:"todoist"`
	Storage  StorageConfig       `yaml:"storage"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	backend := strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if backend == "" {
		backend = BackendFile
	}
	switch backend {
	case BackendFile:
		if strings.TrimSpace(cfg.Storage.File) == "" {
			cfg.Storage.File = "data.json"
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" {
			return fmt.Errorf("database.host is required when storage.backend is 'postgres'")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid storage.backend %q; allowed: file, postgres, memory", cfg.Storage.Backend)
	}
	cfg.Storage.Backend = backend

	if cfg.Todoist.TimeoutSeconds < 0 {
		return fmt.Errorf("todoist.timeout_seconds must be >= 0")
	}
	return nil
}
