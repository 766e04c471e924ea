package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config maps the entire application configuration. Values come from
// configs/config.yaml with environment variable overrides (dots become
// underscores, e.g. SERVER_PORT).
type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"database"`

	// Registry points at the partner rule file loaded at startup.
	Registry struct {
		PartnersFile string `mapstructure:"partners_file"`
	} `mapstructure:"registry"`

	// Analytics controls the summary refresh machinery: the trigger
	// channel buffer, the worker pool draining it, and the periodic
	// full-refresh interval that backstops dropped triggers.
	Analytics struct {
		BufferSize             int `mapstructure:"buffer_size"`
		WorkerCount            int `mapstructure:"worker_count"`
		RefreshIntervalMinutes int `mapstructure:"refresh_interval_minutes"`
	} `mapstructure:"analytics"`

	Referral struct {
		RewardAmount float64 `mapstructure:"reward_amount"`
	} `mapstructure:"referral"`

	Dashboard struct {
		RecentActivityLimit int `mapstructure:"recent_activity_limit"`
	} `mapstructure:"dashboard"`
}

// LoadConfig loads the application configuration using Viper. A missing
// config file is not fatal; defaults cover every key.
func LoadConfig() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.AddConfigPath("./configs")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.name", "affiliate_engine.db")
	viper.SetDefault("registry.partners_file", "./configs/partners.yaml")
	viper.SetDefault("analytics.buffer_size", 1000)
	viper.SetDefault("analytics.worker_count", 2)
	viper.SetDefault("analytics.refresh_interval_minutes", 5)
	viper.SetDefault("referral.reward_amount", 10.0)
	viper.SetDefault("dashboard.recent_activity_limit", 10)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using default values")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
