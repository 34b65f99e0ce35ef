package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the extension folder.
const FileName = "morespeeders.cfg.json"

// Built-in defaults, used for every key the config file leaves out.
const (
	DefaultMinDistance          = 300.0
	DefaultMaxDistance          = 900.0
	DefaultSpawnIntervalSeconds = 10
	DefaultReactionDistance     = 150.0
	DefaultTickIntervalMs       = 100
)

// ErrInvalid is wrapped by Validate for values that were replaced with defaults.
var ErrInvalid = errors.New("invalid config value")

// Config is the traffic controller configuration. It is read once at startup and never changes.
type Config struct {
	Models            []string
	MinDistance       float64
	MaxDistance       float64
	SpawnInterval     time.Duration
	ReactionDistance  float64
	ShowNotifications bool
}

// SpawningEnabled reports whether there is anything to spawn.
func (c Config) SpawningEnabled() bool {
	return len(c.Models) > 0
}

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		Models:            nil,
		MinDistance:       DefaultMinDistance,
		MaxDistance:       DefaultMaxDistance,
		SpawnInterval:     DefaultSpawnIntervalSeconds * time.Second,
		ReactionDistance:  DefaultReactionDistance,
		ShowNotifications: false,
	}
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
}

// StorageConfig selects the session journal backend
type StorageConfig struct {
	Type string `json:"type" mapstructure:"type"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./speederlogs")
	viper.SetDefault("tickIntervalMs", DefaultTickIntervalMs)
	viper.SetDefault("selfTick", false)

	viper.SetDefault("vehicles.models", "")
	viper.SetDefault("spawnDistance.minDistance", DefaultMinDistance)
	viper.SetDefault("spawnDistance.maxDistance", DefaultMaxDistance)
	viper.SetDefault("timing.spawnIntervalSeconds", DefaultSpawnIntervalSeconds)
	viper.SetDefault("emergency.reactionDistance", DefaultReactionDistance)
	viper.SetDefault("notifications.showSpawnNotifications", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "morespeeders")
	viper.SetDefault("otel.batchTimeout", "5s")

	viper.SetDefault("storage.type", "memory")
}

// Load reads configuration from the JSON file and sets default values.
// configDir is the directory containing the config file. Defaults are registered
// even when reading fails, so callers may log the error and carry on.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// Get builds the traffic configuration from the loaded values. Malformed values
// are replaced with their defaults; the returned error lists what was replaced.
func Get() (Config, error) {
	cfg := Config{
		Models:            ParseModels(viper.Get("vehicles.models")),
		MinDistance:       viper.GetFloat64("spawnDistance.minDistance"),
		MaxDistance:       viper.GetFloat64("spawnDistance.maxDistance"),
		SpawnInterval:     time.Duration(viper.GetInt("timing.spawnIntervalSeconds")) * time.Second,
		ReactionDistance:  viper.GetFloat64("emergency.reactionDistance"),
		ShowNotifications: viper.GetBool("notifications.showSpawnNotifications"),
	}
	return Validate(cfg)
}

// Validate replaces out-of-range values with defaults.
func Validate(cfg Config) (Config, error) {
	var errs []error
	def := Default()

	if cfg.MinDistance < 0 || cfg.MaxDistance <= 0 || cfg.MinDistance > cfg.MaxDistance {
		errs = append(errs, fmt.Errorf("%w: spawn distance band [%v,%v]", ErrInvalid, cfg.MinDistance, cfg.MaxDistance))
		cfg.MinDistance = def.MinDistance
		cfg.MaxDistance = def.MaxDistance
	}
	if cfg.SpawnInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: spawn interval %v", ErrInvalid, cfg.SpawnInterval))
		cfg.SpawnInterval = def.SpawnInterval
	}
	if cfg.ReactionDistance < 0 {
		errs = append(errs, fmt.Errorf("%w: reaction distance %v", ErrInvalid, cfg.ReactionDistance))
		cfg.ReactionDistance = def.ReactionDistance
	}

	return cfg, errors.Join(errs...)
}

// ParseModels accepts either a comma-separated string or a list and returns the
// trimmed, non-empty model names in order.
func ParseModels(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	models := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			models = append(models, trimmed)
		}
	}
	return models
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
	}
}

// GetStorageConfig returns the journal backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
	}
}

// TickInterval returns the poll loop period.
func TickInterval() time.Duration {
	ms := viper.GetInt("tickIntervalMs")
	if ms <= 0 {
		ms = DefaultTickIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
