package main

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v6"
)

type config struct {
	ServerURL string        `env:"BLOGCTL_SERVER_URL" envDefault:"http://localhost:8080"`
	SessionDB string        `env:"BLOGCTL_SESSION_DB" envDefault:"blogctl.db"`
	Timeout   time.Duration `env:"BLOGCTL_TIMEOUT" envDefault:"30s"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("in cmd/blogctl/config.go/loadConfig(): error while `env.Parse()` calling: %w", err)
	}
	return cfg, nil
}
