package config

import (
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/handlers/abuse"
	"github.com/ecanizalez/orgreq/internal/handlers/middleware"
	"github.com/ecanizalez/orgreq/internal/lifecycle"
	"github.com/ecanizalez/orgreq/internal/mailer"
)

var (
	logger = log.With().Str("component", "config").Logger()
)

type Config struct {
	Port uint `yaml:"port"`
	// BanHandlersPort is the internal-only listener with the manual
	// firewall controls.
	BanHandlersPort uint   `yaml:"ban_handlers_port"`
	GinMode         string `yaml:"gin_mode"`

	Lifecycle lifecycle.Config      `yaml:"lifecycle"`
	DB        gormw.Config          `yaml:"db"`
	SMTP      mailer.Config         `yaml:"smtp"`
	Auth      middleware.AuthConfig `yaml:"auth"`
	Firewall  abuse.Config          `yaml:"firewall"`
}

func LoadConfig(path string) *Config {
	cfg := &Config{}

	file, err := os.Open(path)
	if err != nil {
		logger.Fatal().Err(err).Msgf("failed to open config file: %s", path)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to decode config file")
	}

	cfg.validate()

	return cfg
}

func (c *Config) validate() {
	if c.Port == 0 {
		logger.Fatal().Msg("Port is missing")
	}

	if c.GinMode == "" {
		logger.Fatal().Msg("GinMode is missing")
	}

	if c.Lifecycle.InvitationBaseURL == "" {
		logger.Fatal().Msg("Lifecycle.InvitationBaseURL is missing")
	}

	if c.Lifecycle.LoginURL == "" {
		logger.Fatal().Msg("Lifecycle.LoginURL is missing")
	}

	c.Auth.Validate()
	c.Firewall.Validate()
}
