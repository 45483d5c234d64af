package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Env                string `mapstructure:"ENV"`
	DataDir            string `mapstructure:"DATA_DIR"`
	KeyFile            string `mapstructure:"KEY_FILE"`
	KoboAPIURL         string `mapstructure:"KOBO_API_URL"`
	KoboAPIToken       string `mapstructure:"KOBO_API_TOKEN"`
	KoboTimeoutSeconds int    `mapstructure:"KOBO_TIMEOUT_SECONDS"`
}

// Load reads configuration from .env and the environment. Every key has a
// default: a first run with no configuration at all must work.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ENV", "development")
	v.SetDefault("DATA_DIR", "output")
	v.SetDefault("KEY_FILE", ".datacarwash.key")
	v.SetDefault("KOBO_API_URL", "https://kf.kobotoolbox.org")
	v.SetDefault("KOBO_API_TOKEN", "")
	v.SetDefault("KOBO_TIMEOUT_SECONDS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("ENV")
	v.BindEnv("DATA_DIR")
	v.BindEnv("KEY_FILE")
	v.BindEnv("KOBO_API_URL")
	v.BindEnv("KOBO_API_TOKEN")
	v.BindEnv("KOBO_TIMEOUT_SECONDS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.KoboTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("KOBO_TIMEOUT_SECONDS must be positive, got %d", cfg.KoboTimeoutSeconds)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}
