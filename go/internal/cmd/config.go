package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/config"
)

// configPathEnv names an optional YAML file applied on top of the environment.
const configPathEnv = "CELEBRATION_CONFIG"

func loadConfig() (config.Config, error) {
	cfg, err := config.NewConfigFromEnv()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to read environment: %w", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		cfg, err = config.LoadFile(path, cfg)
		if err != nil {
			return config.Config{}, err
		}
		log.Info().Str("path", path).Msg("loaded config file")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
