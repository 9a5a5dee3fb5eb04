package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RQT_MONGODB__DATABASE
const EnvPrefix = "RQT"

const defaultEnvFile = ".env"

// Load loads the configuration from file and environment. An explicit
// configPath must exist; otherwise the standard locations are searched and
// a missing file leaves the environment as the only source.
func Load(configPath, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("settings")

		// Check ./config first, matching the deployment layout
		v.AddConfigPath("config")
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".removeqtorrent"))
		}

		// Check /etc
		v.AddConfigPath("/etc/removeqtorrent/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads variables from a dotenv file without overriding the
// process environment. The default file is optional.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}

	return nil
}

// setDefaults sets default configuration values. Every key is registered so
// that environment overrides reach Unmarshal even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mongodb.connection_url", "")
	v.SetDefault("mongodb.database", "")
	v.SetDefault("mongodb.download_collection", "downloads")

	v.SetDefault("torrent_web_ui.base_url", "http://localhost:8080")
	v.SetDefault("torrent_web_ui.username", "")
	v.SetDefault("torrent_web_ui.password", "")
	v.SetDefault("torrent_web_ui.download_root_path", "")
	v.SetDefault("torrent_web_ui.timeout", "0s")

	v.SetDefault("video_mime_types", []string{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.file", "")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.TorrentWebUI.BaseURL == "" {
		return fmt.Errorf("torrent_web_ui.base_url is required")
	}

	if cfg.TorrentWebUI.Timeout < 0 {
		return fmt.Errorf("torrent_web_ui.timeout must not be negative")
	}

	if cfg.MongoDB.ConnectionURL == "" {
		return fmt.Errorf("mongodb.connection_url is required")
	}

	if cfg.MongoDB.Database == "" {
		return fmt.Errorf("mongodb.database is required")
	}

	if cfg.MongoDB.DownloadCollection == "" {
		return fmt.Errorf("mongodb.download_collection is required")
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
