package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration, loadable from file, environment
// (DJENWATCH_*) and flags via viper.
type Config struct {
	API      APIConfig      `yaml:"api" mapstructure:"api"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the upstream judicial-communications client.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ItemsPerPage      int           `yaml:"items_per_page" mapstructure:"items_per_page"`
	MaxPages          int           `yaml:"max_pages" mapstructure:"max_pages"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// ScheduleConfig configures the daily trigger.
type ScheduleConfig struct {
	At       string `yaml:"at" mapstructure:"at"`             // HH:MM local time
	Timezone string `yaml:"timezone" mapstructure:"timezone"` // IANA zone name
}

// StorageConfig configures the rule file and result artifacts.
type StorageConfig struct {
	DataDir    string        `yaml:"data_dir" mapstructure:"data_dir"`
	RulesFile  string        `yaml:"rules_file" mapstructure:"rules_file"`
	ResultsDir string        `yaml:"results_dir" mapstructure:"results_dir"`
	CacheTTL   time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// ServerConfig configures the read-only consumer API.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Default returns the built-in configuration, mirroring the reference
// deployment: the CNJ DJEN endpoint, a 06:00 Brasília trigger, and file
// storage under ./data.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "https://comunicaapi.pje.jus.br/api/v1/comunicacao",
			Timeout:           30 * time.Second,
			ItemsPerPage:      50,
			MaxPages:          200,
			MaxRetries:        3,
			RequestsPerSecond: 2,
			UserAgent:         "djenwatch/0.1 (+https://github.com/legallex/djenwatch)",
		},
		Schedule: ScheduleConfig{
			At:       "06:00",
			Timezone: "America/Sao_Paulo",
		},
		Storage: StorageConfig{
			DataDir:    "data",
			RulesFile:  "data/rules.yaml",
			ResultsDir: "data/daily_results",
			CacheTTL:   5 * time.Minute,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load merges viper's current state (file, env, bound flags) over defaults.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.ItemsPerPage <= 0 {
		return fmt.Errorf("api.items_per_page must be positive, got %d", c.API.ItemsPerPage)
	}
	if c.API.MaxPages <= 0 {
		return fmt.Errorf("api.max_pages must be positive, got %d", c.API.MaxPages)
	}
	if _, err := ParseTriggerTime(c.Schedule.At); err != nil {
		return fmt.Errorf("schedule.at: %w", err)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	return nil
}

// Location resolves the configured timezone. Validate must have passed.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TriggerTime holds a wall-clock trigger instant within a day.
type TriggerTime struct {
	Hour   int
	Minute int
}

// ParseTriggerTime parses an HH:MM trigger time.
func ParseTriggerTime(s string) (TriggerTime, error) {
	var tt TriggerTime
	if _, err := fmt.Sscanf(s, "%d:%d", &tt.Hour, &tt.Minute); err != nil {
		return tt, fmt.Errorf("invalid trigger time %q: want HH:MM", s)
	}
	if tt.Hour < 0 || tt.Hour > 23 || tt.Minute < 0 || tt.Minute > 59 {
		return tt, fmt.Errorf("invalid trigger time %q: out of range", s)
	}
	return tt, nil
}
