package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/meucuidador/care-api/pkg/validator"
)

// Config is read from CARECTL_* environment variables.
type Config struct {
	APIURL   string        `envconfig:"API_URL" default:"http://localhost:8080" validate:"required,url"`
	Token    string        `envconfig:"TOKEN"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"15s" validate:"gt=0"`
	Debounce time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"300ms"`
	LogLevel string        `envconfig:"LOG_LEVEL" default:"warn" validate:"oneof=debug info warn error"`
	NoColor  bool          `envconfig:"NO_COLOR"`
}

func loadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("carectl", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validator.New().Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
