// Package config loads application settings from a yaml file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/llm"
	"policy_compass/pkg/core/store"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server       ServerConfig    `yaml:"server"`
	Gemini       GeminiConfig    `yaml:"gemini"`
	Models       agent.Config    `yaml:"models"`
	Guard        llm.GuardConfig `yaml:"guard"`
	Cache        CacheConfig     `yaml:"cache"`
	Chat         ChatConfig      `yaml:"chat"`
	Database     DatabaseConfig  `yaml:"database"`
	Log          LogConfig       `yaml:"log"`
	ResourcesDir string          `yaml:"resources_dir"`
}

type ServerConfig struct {
	Port          int    `yaml:"port"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

type GeminiConfig struct {
	APIKey   string `yaml:"api_key"`
	Simulate bool   `yaml:"simulate"` // serve canned responses instead of calling the API
}

type CacheConfig struct {
	Capacity int           `yaml:"capacity"` // 0 disables the analysis cache
	TTL      time.Duration `yaml:"ttl"`
}

type ChatConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// DatabaseConfig selects where analysis history lives: Postgres when URL is
// set, JSON files when only Dir is set, otherwise process memory bounded by
// MemoryLimit records and MemoryMaxAge.
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	Dir          string        `yaml:"dir"`
	MemoryLimit  int           `yaml:"memory_limit"`
	MemoryMaxAge time.Duration `yaml:"memory_max_age"`
}

// StoreOptions maps the database settings onto store.Open.
func (d DatabaseConfig) StoreOptions() store.Options {
	return store.Options{
		URL:          d.URL,
		Dir:          d.Dir,
		MemoryLimit:  d.MemoryLimit,
		MemoryMaxAge: d.MemoryMaxAge,
	}
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080, AllowedOrigin: "*"},
		Models: agent.DefaultConfig(),
		Guard: llm.GuardConfig{
			RequestsPerMinute: 30,
			Burst:             2,
			MaxFailures:       5,
			OpenTimeout:       30 * time.Second,
		},
		Cache:        CacheConfig{Capacity: 64, TTL: 30 * time.Minute},
		Chat:         ChatConfig{SessionTTL: 24 * time.Hour},
		Database:     DatabaseConfig{MemoryLimit: 200, MemoryMaxAge: 24 * time.Hour},
		Log:          LogConfig{Level: "info"},
		ResourcesDir: "resources",
	}
}

// Load reads path over the defaults. A missing file is not an error.
// Environment variables are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from environment lookups.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	} else if v := getenv("API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getenv("POLICY_COMPASS_SIMULATE"); v != "" {
		simulate, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid POLICY_COMPASS_SIMULATE %q: %w", v, err)
		}
		c.Gemini.Simulate = simulate
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
