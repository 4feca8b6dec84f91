package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.voxi/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8189
// backend:
//   base_url: https://backend.example.com
//   anon_key: ...
//   bucket: card-media
//   workspace_id: ws-123
// ai:
//   base_url: https://ai.example.com
// speech:
//   language: tr-TR
//   rate: 1.0
//   pitch: 1.0
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	AI      AIConfig      `yaml:"ai"`
	Speech  SpeechConfig  `yaml:"speech"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	AnonKey     string `yaml:"anon_key"`
	AccessToken string `yaml:"access_token"`
	Bucket      string `yaml:"bucket"`
	WorkspaceID string `yaml:"workspace_id"`
	UserID      string `yaml:"user_id"`
	IndustryID  string `yaml:"industry_id"`
}

type AIConfig struct {
	BaseURL string `yaml:"base_url"`
}

type SpeechConfig struct {
	Language string   `yaml:"language"`
	Rate     *float64 `yaml:"rate"`
	Pitch    *float64 `yaml:"pitch"`
}

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8189
	DefaultBucket   = "card-media"
	DefaultLanguage = "tr-TR"
	DefaultRate     = 1.0
	DefaultPitch    = 1.0
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".voxi")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.voxi/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)}}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions; the anon key lives here.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

func (c *AppConfig) Bucket() string {
	if c == nil || strings.TrimSpace(c.Backend.Bucket) == "" {
		return DefaultBucket
	}
	return c.Backend.Bucket
}

func (c *AppConfig) Language() string {
	if c == nil || strings.TrimSpace(c.Speech.Language) == "" {
		return DefaultLanguage
	}
	return c.Speech.Language
}

func (c *AppConfig) Rate() float64 {
	if c == nil || c.Speech.Rate == nil {
		return DefaultRate
	}
	return *c.Speech.Rate
}

func (c *AppConfig) Pitch() float64 {
	if c == nil || c.Speech.Pitch == nil {
		return DefaultPitch
	}
	return *c.Speech.Pitch
}

func ptr[T any](v T) *T { return &v }
