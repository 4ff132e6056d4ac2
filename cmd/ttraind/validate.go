package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/takeda/ttrain/internal/config"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the ttrain configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with -dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		// Get default configuration
		defaultCfg := getDefaultConfig()

		// Dump configuration
		dumpConfig(cfg, defaultCfg, unknownKeys)
	}

	return nil
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	setDefaultsForDump(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// setDefaultsForDump sets default configuration values (copied from config package)
func setDefaultsForDump(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.gateway_port", 8777)
	v.SetDefault("server.api_port", 8778)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.auth_token", "")

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

	// World defaults
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
	v.SetDefault("redis.password", "")
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

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	// Get all keys from the config file
	allKeys := v.AllKeys()

	// Build set of valid keys
	validKeys := getValidKeys()

	// Find unknown keys
	unknown := []string{}
	for _, key := range allKeys {
		if !validKeys[key] {
			// Map-valued sections carry arbitrary subkeys
			if strings.HasPrefix(key, "worlds.aliases.") || strings.HasPrefix(key, "messages.overrides.") {
				continue
			}
			unknown = append(unknown, key)
		}
	}

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys
func getValidKeys() map[string]bool {
	keys := map[string]bool{
		// Server
		"server.gateway_port": true,
		"server.api_port":     true,
		"server.metrics_port": true,
		"server.bind_address": true,
		"server.auth_token":   true,

		// Training
		"training.min_totems":        true,
		"training.max_totems":        true,
		"training.default_totems":    true,
		"training.min_duration":      true,
		"training.max_duration":      true,
		"training.default_duration":  true,
		"training.end_on_last_totem": true,
		"training.refresh_interval":  true,
		"training.teardown_delay":    true,

		// Opponent
		"opponent.health":    true,
		"opponent.equipment": true,
		"opponent.label":     true,

		// Worlds
		"worlds.enabled":  true,
		"worlds.disabled": true,
		"worlds.aliases":  true,

		// Menu
		"menu.enabled":       true,
		"menu.title":         true,
		"menu.rows":          true,
		"menu.totem_slot":    true,
		"menu.duration_slot": true,
		"menu.confirm_slot":  true,
		"menu.cancel_slot":   true,

		// Messages
		"messages.prefix":    true,
		"messages.overrides": true,

		// Sounds
		"sounds.enabled":   true,
		"sounds.spawn":     true,
		"sounds.totem_use": true,
		"sounds.complete":  true,

		// Storage
		"storage.path": true,
		"storage.type": true,

		// Redis
		"redis.host":           true,
		"redis.port":           true,
		"redis.password":       true,
		"redis.db":             true,
		"redis.pool_size":      true,
		"redis.min_idle_conns": true,
		"redis.dial_timeout":   true,
		"redis.read_timeout":   true,
		"redis.write_timeout":  true,

		// Logging
		"logging.level":  true,
		"logging.format": true,

		// Policy
		"policy.opa_policy_dir": true,
		"policy.default_allow":  true,

		// History
		"history.retention_days": true,
		"history.recent_cache":   true,
	}

	return keys
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config, unknownKeys []string) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Server
	_, _ = cyan.Println("\n[server]")
	dumpField("  gateway_port", cfg.Server.GatewayPort, defaultCfg.Server.GatewayPort, yellow, green)
	dumpField("  api_port", cfg.Server.APIPort, defaultCfg.Server.APIPort, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  auth_token", redactSecret(cfg.Server.AuthToken), redactSecret(defaultCfg.Server.AuthToken), yellow, green)

	// Training
	_, _ = cyan.Println("\n[training]")
	dumpField("  min_totems", cfg.Training.MinTotems, defaultCfg.Training.MinTotems, yellow, green)
	dumpField("  max_totems", cfg.Training.MaxTotems, defaultCfg.Training.MaxTotems, yellow, green)
	dumpField("  default_totems", cfg.Training.DefaultTotems, defaultCfg.Training.DefaultTotems, yellow, green)
	dumpField("  min_duration", cfg.Training.MinDuration, defaultCfg.Training.MinDuration, yellow, green)
	dumpField("  max_duration", cfg.Training.MaxDuration, defaultCfg.Training.MaxDuration, yellow, green)
	dumpField("  default_duration", cfg.Training.DefaultDuration, defaultCfg.Training.DefaultDuration, yellow, green)
	dumpField("  end_on_last_totem", cfg.Training.EndOnLastTotem, defaultCfg.Training.EndOnLastTotem, yellow, green)
	dumpField("  refresh_interval", cfg.Training.RefreshInterval, defaultCfg.Training.RefreshInterval, yellow, green)
	dumpField("  teardown_delay", cfg.Training.TeardownDelay, defaultCfg.Training.TeardownDelay, yellow, green)

	// Opponent
	_, _ = cyan.Println("\n[opponent]")
	dumpField("  health", cfg.Opponent.Health, defaultCfg.Opponent.Health, yellow, green)
	dumpField("  equipment", cfg.Opponent.Equipment, defaultCfg.Opponent.Equipment, yellow, green)
	dumpField("  label", cfg.Opponent.Label, defaultCfg.Opponent.Label, yellow, green)

	// Worlds
	_, _ = cyan.Println("\n[worlds]")
	dumpField("  enabled", cfg.Worlds.Enabled, defaultCfg.Worlds.Enabled, yellow, green)
	dumpField("  disabled", cfg.Worlds.Disabled, defaultCfg.Worlds.Disabled, yellow, green)
	dumpField("  aliases", cfg.Worlds.Aliases, defaultCfg.Worlds.Aliases, yellow, green)

	// Menu
	_, _ = cyan.Println("\n[menu]")
	dumpField("  enabled", cfg.Menu.Enabled, defaultCfg.Menu.Enabled, yellow, green)
	dumpField("  title", cfg.Menu.Title, defaultCfg.Menu.Title, yellow, green)
	dumpField("  rows", cfg.Menu.Rows, defaultCfg.Menu.Rows, yellow, green)
	dumpField("  totem_slot", cfg.Menu.TotemSlot, defaultCfg.Menu.TotemSlot, yellow, green)
	dumpField("  duration_slot", cfg.Menu.DurationSlot, defaultCfg.Menu.DurationSlot, yellow, green)
	dumpField("  confirm_slot", cfg.Menu.ConfirmSlot, defaultCfg.Menu.ConfirmSlot, yellow, green)
	dumpField("  cancel_slot", cfg.Menu.CancelSlot, defaultCfg.Menu.CancelSlot, yellow, green)

	// Messages
	_, _ = cyan.Println("\n[messages]")
	dumpField("  prefix", cfg.Messages.Prefix, defaultCfg.Messages.Prefix, yellow, green)
	dumpField("  overrides", cfg.Messages.Overrides, defaultCfg.Messages.Overrides, yellow, green)

	// Sounds
	_, _ = cyan.Println("\n[sounds]")
	dumpField("  enabled", cfg.Sounds.Enabled, defaultCfg.Sounds.Enabled, yellow, green)
	dumpField("  spawn", cfg.Sounds.Spawn, defaultCfg.Sounds.Spawn, yellow, green)
	dumpField("  totem_use", cfg.Sounds.TotemUse, defaultCfg.Sounds.TotemUse, yellow, green)
	dumpField("  complete", cfg.Sounds.Complete, defaultCfg.Sounds.Complete, yellow, green)

	// Storage
	_, _ = cyan.Println("\n[storage]")
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)

	// Redis
	_, _ = cyan.Println("\n[redis]")
	dumpField("  host", cfg.Redis.Host, defaultCfg.Redis.Host, yellow, green)
	dumpField("  port", cfg.Redis.Port, defaultCfg.Redis.Port, yellow, green)
	dumpField("  password", redactSecret(cfg.Redis.Password), redactSecret(defaultCfg.Redis.Password), yellow, green)
	dumpField("  db", cfg.Redis.DB, defaultCfg.Redis.DB, yellow, green)
	dumpField("  pool_size", cfg.Redis.PoolSize, defaultCfg.Redis.PoolSize, yellow, green)
	dumpField("  min_idle_conns", cfg.Redis.MinIdleConns, defaultCfg.Redis.MinIdleConns, yellow, green)
	dumpField("  dial_timeout", cfg.Redis.DialTimeout, defaultCfg.Redis.DialTimeout, yellow, green)
	dumpField("  read_timeout", cfg.Redis.ReadTimeout, defaultCfg.Redis.ReadTimeout, yellow, green)
	dumpField("  write_timeout", cfg.Redis.WriteTimeout, defaultCfg.Redis.WriteTimeout, yellow, green)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	// Policy
	_, _ = cyan.Println("\n[policy]")
	dumpField("  opa_policy_dir", cfg.Policy.OPAPolicyDir, defaultCfg.Policy.OPAPolicyDir, yellow, green)
	dumpField("  default_allow", cfg.Policy.DefaultAllow, defaultCfg.Policy.DefaultAllow, yellow, green)

	// History
	_, _ = cyan.Println("\n[history]")
	dumpField("  retention_days", cfg.History.RetentionDays, defaultCfg.History.RetentionDays, yellow, green)
	dumpField("  recent_cache", cfg.History.RecentCache, defaultCfg.History.RecentCache, yellow, green)

	// Display unknown keys if any
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)

		_, _ = cyan.Println("\n[UNKNOWN KEYS - These will be ignored!]")
		for _, key := range unknownKeys {
			_, _ = red.Printf("  %s = (unknown key - check for typos)\n", key)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	// Deep equal comparison
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactSecret redacts a secret value if not empty
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}
