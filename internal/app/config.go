package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	PipelinePath string

	LogFormat string
	LogLevel  string
	Workers   int
	Async     bool
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Workers <= 0 {
		return nil, errors.New("Workers must be positive")
	}
	return &cfg, nil
}
