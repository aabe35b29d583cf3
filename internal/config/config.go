package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file at the root of a history repo.
const FileName = "emcshop.yaml"

// PasswordEnv is the environment variable the login password is read from.
// The password is never stored in the config file.
const PasswordEnv = "EMCSHOP_PASSWORD"

// Config represents the top-level emcshop.yaml configuration.
type Config struct {
	Profile  ProfileConfig  `yaml:"profile"`
	Server   ServerConfig   `yaml:"server"`
	Download DownloadConfig `yaml:"download"`
	Output   OutputConfig   `yaml:"output"`
	Git      GitConfig      `yaml:"git"`
}

// ProfileConfig identifies the player whose history is downloaded.
type ProfileConfig struct {
	Username string `yaml:"username" validate:"required"`
}

// ServerConfig controls how the website is contacted.
type ServerConfig struct {
	BaseURL       string        `yaml:"base_url" validate:"required,url"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
	RatePerSecond float64       `yaml:"rate_per_second" validate:"gte=0"`
	Burst         int           `yaml:"burst" validate:"gte=0"`
}

// DownloadConfig controls the page reader.
type DownloadConfig struct {
	Workers int `yaml:"workers" validate:"min=1,max=32"`
	// StopAtLast stops an update at the newest record already stored.
	StopAtLast bool `yaml:"stop_at_last"`
}

// OutputConfig locates the history files and run log, relative to the repo
// root unless absolute.
type OutputConfig struct {
	HistoryDir string `yaml:"history_dir" validate:"required"`
	LogDir     string `yaml:"log_dir" validate:"required"`
}

// GitConfig controls commits of downloaded history when the repo is a git
// repository.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name" validate:"required_if=AutoCommit true"`
	AuthorEmail string `yaml:"author_email" validate:"omitempty,email"`
}

// Load reads an emcshop.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new history repo.
func Default(username string) *Config {
	return &Config{
		Profile: ProfileConfig{
			Username: username,
		},
		Server: ServerConfig{
			BaseURL:       "https://empireminecraft.com",
			Timeout:       2 * time.Minute,
			RatePerSecond: 4,
			Burst:         4,
		},
		Download: DownloadConfig{
			Workers:    4,
			StopAtLast: true,
		},
		Output: OutputConfig{
			HistoryDir: "history",
			LogDir:     "logs",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "emcshop",
			AuthorEmail: "emcshop@example.com",
		},
	}
}
