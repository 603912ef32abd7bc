package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type StoreConfig struct {
	// Path is the directory the pebble database lives in.
	Path string `mapstructure:"path"`
	// SnapshotDepth bounds nested expansion (quoted/parent messages) when
	// building immutable snapshot models. Past the limit the nested
	// relationship resolves to nil.
	SnapshotDepth int `mapstructure:"snapshot_depth"`
	// ResetEphemeralsOnOpen controls the cold-start pass that clears
	// online flags, watcher and typing sets before traffic is accepted.
	ResetEphemeralsOnOpen bool `mapstructure:"reset_ephemerals_on_open"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	v.SetDefault("store.path", "./chatsync.db")
	v.SetDefault("store.snapshot_depth", 2)
	v.SetDefault("store.reset_ephemerals_on_open", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

// Default returns a config usable without a config file, mostly for tests
// and the replay tool.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:                  "./chatsync.db",
			SnapshotDepth:         2,
			ResetEphemeralsOnOpen: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
