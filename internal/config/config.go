package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Training TrainingConfig `mapstructure:"training"`
	Opponent OpponentConfig `mapstructure:"opponent"`
	Worlds   WorldsConfig   `mapstructure:"worlds"`
	Menu     MenuConfig     `mapstructure:"menu"`
	Messages MessagesConfig `mapstructure:"messages"`
	Sounds   SoundsConfig   `mapstructure:"sounds"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	History  HistoryConfig  `mapstructure:"history"`
}

// ServerConfig defines listener ports and addresses
type ServerConfig struct {
	GatewayPort int    `mapstructure:"gateway_port"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
	AuthToken   string `mapstructure:"auth_token"` // shared secret for the game-server bridge
}

// TrainingConfig defines session bounds and end-of-session policy
type TrainingConfig struct {
	MinTotems       int    `mapstructure:"min_totems"`
	MaxTotems       int    `mapstructure:"max_totems"`
	DefaultTotems   int    `mapstructure:"default_totems"`
	MinDuration     string `mapstructure:"min_duration"`
	MaxDuration     string `mapstructure:"max_duration"`
	DefaultDuration string `mapstructure:"default_duration"`
	EndOnLastTotem  bool   `mapstructure:"end_on_last_totem"`
	RefreshInterval string `mapstructure:"refresh_interval"`
	TeardownDelay   string `mapstructure:"teardown_delay"`
}

// OpponentConfig defines the spawned opponent's loadout
type OpponentConfig struct {
	Health    float64  `mapstructure:"health"`
	Equipment []string `mapstructure:"equipment"`
	Label     string   `mapstructure:"label"`
}

// WorldsConfig defines where sessions may be started
type WorldsConfig struct {
	Enabled  []string          `mapstructure:"enabled"`
	Disabled []string          `mapstructure:"disabled"`
	Aliases  map[string]string `mapstructure:"aliases"`
}

// MenuConfig defines the spawn menu layout
type MenuConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Title        string `mapstructure:"title"`
	Rows         int    `mapstructure:"rows"`
	TotemSlot    int    `mapstructure:"totem_slot"`
	DurationSlot int    `mapstructure:"duration_slot"`
	ConfirmSlot  int    `mapstructure:"confirm_slot"`
	CancelSlot   int    `mapstructure:"cancel_slot"`
}

// MessagesConfig overrides entries in the built-in message catalog
type MessagesConfig struct {
	Prefix    string            `mapstructure:"prefix"`
	Overrides map[string]string `mapstructure:"overrides"`
}

// SoundsConfig defines the sound cues pushed to the game server
type SoundsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Spawn    string `mapstructure:"spawn"`
	TotemUse string `mapstructure:"totem_use"`
	Complete string `mapstructure:"complete"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Path string `mapstructure:"path"`
	Type string `mapstructure:"type"`
}

// RedisConfig defines the Redis connection when storage.type is "redis"
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PolicyConfig defines permission engine settings
type PolicyConfig struct {
	OPAPolicyDir string `mapstructure:"opa_policy_dir"`
	DefaultAllow bool   `mapstructure:"default_allow"`
}

// HistoryConfig defines session history retention
type HistoryConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
	RecentCache   int `mapstructure:"recent_cache"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TTRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.gateway_port", 8777)
	v.SetDefault("server.api_port", 8778)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")

	// Training defaults
	v.SetDefault("training.min_totems", 1)
	v.SetDefault("training.max_totems", 5)
	v.SetDefault("training.default_totems", 1)
	v.SetDefault("training.min_duration", "15s")
	v.SetDefault("training.max_duration", "5m")
	v.SetDefault("training.default_duration", "1m")
	v.SetDefault("training.end_on_last_totem", true)
	v.SetDefault("training.refresh_interval", "1s")
	v.SetDefault("training.teardown_delay", "50ms")

	// Opponent defaults
	v.SetDefault("opponent.health", 20.0)
	v.SetDefault("opponent.equipment", []string{
		"netherite_helmet",
		"netherite_chestplate",
		"netherite_leggings",
		"netherite_boots",
	})
	v.SetDefault("opponent.label", "Training Zombie")

	// World defaults: empty enabled list means every world not disabled
	v.SetDefault("worlds.enabled", []string{})
	v.SetDefault("worlds.disabled", []string{})
	v.SetDefault("worlds.aliases", map[string]string{})

	// Menu defaults
	v.SetDefault("menu.enabled", true)
	v.SetDefault("menu.title", "Training Setup")
	v.SetDefault("menu.rows", 3)
	v.SetDefault("menu.totem_slot", 11)
	v.SetDefault("menu.duration_slot", 13)
	v.SetDefault("menu.confirm_slot", 15)
	v.SetDefault("menu.cancel_slot", 22)

	// Message defaults
	v.SetDefault("messages.prefix", "[Training] ")
	v.SetDefault("messages.overrides", map[string]string{})

	// Sound defaults
	v.SetDefault("sounds.enabled", true)
	v.SetDefault("sounds.spawn", "entity.zombie.ambient")
	v.SetDefault("sounds.totem_use", "item.totem.use")
	v.SetDefault("sounds.complete", "entity.player.levelup")

	// Storage defaults
	v.SetDefault("storage.path", "/var/lib/ttrain/ttrain.bolt")
	v.SetDefault("storage.type", "bolt")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Policy defaults
	v.SetDefault("policy.opa_policy_dir", "")
	v.SetDefault("policy.default_allow", true)

	// History defaults
	v.SetDefault("history.retention_days", 30)
	v.SetDefault("history.recent_cache", 64)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.GatewayPort <= 0 || cfg.Server.GatewayPort > 65535 {
		return fmt.Errorf("invalid gateway port: %d", cfg.Server.GatewayPort)
	}
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid api port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Training.MinTotems < 1 {
		return fmt.Errorf("training.min_totems must be at least 1")
	}
	if cfg.Training.MaxTotems < cfg.Training.MinTotems {
		return fmt.Errorf("training.max_totems must not be below training.min_totems")
	}
	if cfg.Training.DefaultTotems < cfg.Training.MinTotems || cfg.Training.DefaultTotems > cfg.Training.MaxTotems {
		return fmt.Errorf("training.default_totems must fall within [%d, %d]", cfg.Training.MinTotems, cfg.Training.MaxTotems)
	}

	if cfg.Menu.Rows < 1 || cfg.Menu.Rows > 6 {
		return fmt.Errorf("menu.rows must fall within [1, 6]")
	}
	slots := cfg.Menu.Rows * 9
	for name, slot := range map[string]int{
		"totem_slot":    cfg.Menu.TotemSlot,
		"duration_slot": cfg.Menu.DurationSlot,
		"confirm_slot":  cfg.Menu.ConfirmSlot,
		"cancel_slot":   cfg.Menu.CancelSlot,
	} {
		if slot < 0 || slot >= slots {
			return fmt.Errorf("menu.%s %d outside a %d-slot menu", name, slot, slots)
		}
	}

	if cfg.Opponent.Health <= 0 {
		return fmt.Errorf("opponent.health must be positive")
	}

	// Validate storage path
	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
	case "bolt", "redis":
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if cfg.Storage.Type == "bolt" {
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	if cfg.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative")
	}

	return nil
}
