package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// JWTConfig holds configuration for JWT token generation and validation.
type JWTConfig struct {
	Secret          string `env:"JWT_SECRET"`
	ExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
}

// NewJWTConfig creates a new JWT configuration from environment variables.
// It reads JWT_SECRET (required) and JWT_EXPIRATION_HOURS (default: 24).
func NewJWTConfig() (*JWTConfig, error) {
	return newJWTConfig(env.Options{})
}

// JWTConfigFromMap is NewJWTConfig reading vars instead of the process environment.
func JWTConfigFromMap(vars map[string]string) (*JWTConfig, error) {
	return newJWTConfig(env.Options{Environment: vars})
}

func newJWTConfig(opts env.Options) (*JWTConfig, error) {
	var config JWTConfig
	if err := env.ParseWithOptions(&config, opts); err != nil {
		return nil, fmt.Errorf("invalid JWT configuration: %w", err)
	}
	if err := config.normalize(); err != nil {
		return nil, err
	}
	return &config, nil
}

// normalize validates the configuration.
func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}
