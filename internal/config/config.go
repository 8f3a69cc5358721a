// Package config loads settings from an optional TOML file with
// environment variable overrides. A .env file in the working directory is
// honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Sim      SimConfig      `toml:"sim"`
	LLM      LLMConfig      `toml:"llm"`
}

type ServerConfig struct {
	Port     int    `toml:"port"`
	AdminKey string `toml:"admin_key"`
}

type DatabaseConfig struct {
	Path    string `toml:"path"`
	Permits int64  `toml:"permits"`
}

type SimConfig struct {
	TickIncrementMin int     `toml:"tick_increment_min"`
	TickIntervalSec  float64 `toml:"tick_interval_sec"`
	PlanningMinute   int     `toml:"planning_minute"`
	DialogueChance   float64 `toml:"dialogue_chance"`
	CooldownMinutes  int     `toml:"dialogue_cooldown_min"`
	EventChance      float64 `toml:"event_chance"`
	StatusEvery      uint64  `toml:"status_every_ticks"`
}

type LLMConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	CallsPerMinute int    `toml:"calls_per_minute"`
	TimeoutSec     int    `toml:"timeout_sec"`
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "officeverse.db", Permits: 5},
		Sim: SimConfig{
			TickIncrementMin: 15,
			TickIntervalSec:  1.0,
			PlanningMinute:   300,
			DialogueChance:   0.5,
			CooldownMinutes:  480,
			EventChance:      0.05,
			StatusEvery:      10,
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			CallsPerMinute: 60,
			TimeoutSec:     30,
		},
	}
}

// Load reads the TOML file at path (skipped when empty or absent), then
// applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// config file optional
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	overrideString(&cfg.Server.AdminKey, "OFFICEVERSE_ADMIN_KEY")
	overrideInt(&cfg.Server.Port, "OFFICEVERSE_PORT")
	overrideString(&cfg.Database.Path, "OFFICEVERSE_DB")
	overrideString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.LLM.BaseURL, "OPENAI_BASE_URL")
	overrideString(&cfg.LLM.Model, "OPENAI_MODEL")
	overrideString(&cfg.LLM.EmbeddingModel, "OPENAI_EMBEDDING_MODEL")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Sim.TickIncrementMin <= 0 || c.Sim.TickIncrementMin > 1440 {
		return fmt.Errorf("tick_increment_min must be in 1..1440, got %d", c.Sim.TickIncrementMin)
	}
	if c.Sim.TickIntervalSec <= 0 {
		return fmt.Errorf("tick_interval_sec must be positive")
	}
	if c.Sim.DialogueChance < 0 || c.Sim.DialogueChance > 1 {
		return fmt.Errorf("dialogue_chance must be in 0..1")
	}
	if c.Sim.EventChance < 0 || c.Sim.EventChance > 1 {
		return fmt.Errorf("event_chance must be in 0..1")
	}
	if c.Database.Permits <= 0 {
		return fmt.Errorf("database permits must be positive")
	}
	return nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
