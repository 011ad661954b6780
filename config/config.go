package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the process-wide settings. All fields are fixed at startup
// and never change for the lifetime of the server.
type Config struct {
	Host         string `validate:"required"`
	Port         int    `validate:"gte=1,lte=65535"`
	AdminToken   string `validate:"required"`
	LoggingLevel string
}

// ListenAddr returns the host:port pair the server binds to
func (cfg *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 21115)
	v.SetDefault("admin_token", "devtoken")
	v.SetDefault("logging_level", "info")
}

// Load initializes configuration with priority:
// 1. Command-line flags
// 2. Environment variables (STRATEGY_HOST, STRATEGY_PORT, ...)
// 3. Defaults
func Load(args []string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("strategy")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	flags := flag.NewFlagSet("device-strategy-service", flag.ContinueOnError)
	host := flags.String("host", v.GetString("host"), "The host address to bind the server to")
	port := flags.Int("port", v.GetInt("port"), "The port to listen on")
	adminToken := flags.String("adminToken", v.GetString("admin_token"), "Static shared secret expected in the X-Admin-Token header")
	loggingLevel := flags.String("loggingLevel", v.GetString("logging_level"), "The level of logging desired")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:         *host,
		Port:         *port,
		AdminToken:   *adminToken,
		LoggingLevel: *loggingLevel,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
