package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for limits that cannot produce a working game.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every construction-time parameter of the celebration service.
type Config struct {
	TargetDate  MonthDay `yaml:"target_date"`
	DisplayName string   `yaml:"display_name"`

	// InitialValue seeds the happiness meter.
	InitialValue int `yaml:"initial_value"`

	Game    GameConfig   `yaml:"game"`
	Cake    CakeConfig   `yaml:"cake"`
	Server  ServerConfig `yaml:"server"`
	NATSURL string       `yaml:"nats_url"`
	Log     LogConfig    `yaml:"log"`
	Timing  TimingConfig `yaml:"timing"`
}

// GameConfig holds the balloon game limits.
type GameConfig struct {
	MaxActive            int `yaml:"max_active"`
	InitialBatch         int `yaml:"initial_batch"`
	MilestoneInterval    int `yaml:"milestone_interval"`
	BigMilestoneInterval int `yaml:"big_milestone_interval"`
}

// TimingConfig holds the durations that drive ticks and transient displays.
type TimingConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	MilestoneDisplay time.Duration `yaml:"milestone_display"`
	StartDelay       time.Duration `yaml:"start_delay"`
}

// CakeConfig holds the cake celebration settings.
type CakeConfig struct {
	CelebrationDuration time.Duration `yaml:"celebration_duration"`
	SongAsset           string        `yaml:"song_asset"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TargetDate:   MonthDay{Month: time.June, Day: 29},
		DisplayName:  "Kashish",
		InitialValue: 100,
		Game: GameConfig{
			MaxActive:            25,
			InitialBatch:         12,
			MilestoneInterval:    10,
			BigMilestoneInterval: 25,
		},
		Timing: TimingConfig{
			TickInterval:     time.Second,
			MilestoneDisplay: 3 * time.Second,
			StartDelay:       500 * time.Millisecond,
		},
		Cake: CakeConfig{
			CelebrationDuration: 10 * time.Second,
			SongAsset:           "assets/happy-birthday.mp3",
		},
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// NewConfigFromEnv reads the environment on top of the defaults.
// Malformed values are reported instead of silently falling back.
func NewConfigFromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("TARGET_DATE"); v != "" {
		md, err := ParseMonthDay(v)
		if err != nil {
			return Config{}, err
		}
		cfg.TargetDate = md
	}
	cfg.DisplayName = getEnv("DISPLAY_NAME", cfg.DisplayName)
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Cake.SongAsset = getEnv("SONG_ASSET", cfg.Cake.SongAsset)

	ints := []struct {
		key string
		dst *int
	}{
		{"INITIAL_VALUE", &cfg.InitialValue},
		{"MAX_ACTIVE", &cfg.Game.MaxActive},
		{"INITIAL_BATCH", &cfg.Game.InitialBatch},
		{"MILESTONE_INTERVAL", &cfg.Game.MilestoneInterval},
		{"BIG_MILESTONE_INTERVAL", &cfg.Game.BigMilestoneInterval},
	}
	for _, it := range ints {
		if err := getEnvAsInt(it.key, it.dst); err != nil {
			return Config{}, err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"TICK_INTERVAL", &cfg.Timing.TickInterval},
		{"MILESTONE_DISPLAY", &cfg.Timing.MilestoneDisplay},
		{"START_DELAY", &cfg.Timing.StartDelay},
		{"CELEBRATION_DURATION", &cfg.Cake.CelebrationDuration},
	}
	for _, it := range durations {
		if err := getEnvAsDuration(it.key, it.dst); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current value.
func LoadFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Validate fails fast on configuration that would make the timers misbehave.
func (c Config) Validate() error {
	if err := c.TargetDate.Validate(); err != nil {
		return err
	}
	if c.Game.MaxActive <= 0 {
		return fmt.Errorf("%w: max_active must be positive, got %d", ErrInvalidConfig, c.Game.MaxActive)
	}
	if c.Game.InitialBatch < 0 {
		return fmt.Errorf("%w: initial_batch must not be negative, got %d", ErrInvalidConfig, c.Game.InitialBatch)
	}
	if c.Game.MilestoneInterval <= 0 {
		return fmt.Errorf("%w: milestone_interval must be positive, got %d", ErrInvalidConfig, c.Game.MilestoneInterval)
	}
	if c.Game.BigMilestoneInterval <= 0 {
		return fmt.Errorf("%w: big_milestone_interval must be positive, got %d", ErrInvalidConfig, c.Game.BigMilestoneInterval)
	}
	if c.Timing.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalidConfig)
	}
	if c.Timing.MilestoneDisplay <= 0 {
		return fmt.Errorf("%w: milestone_display must be positive", ErrInvalidConfig)
	}
	if c.Cake.CelebrationDuration <= 0 {
		return fmt.Errorf("%w: celebration_duration must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func getEnvAsDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v)
	}
	*dst = d
	return nil
}
