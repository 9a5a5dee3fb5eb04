package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	MongoDB        MongoDBConfig      `mapstructure:"mongodb"`
	TorrentWebUI   TorrentWebUIConfig `mapstructure:"torrent_web_ui"`
	VideoMimeTypes []string           `mapstructure:"video_mime_types"`
	Logging        LoggingConfig      `mapstructure:"logging"`
}

// MongoDBConfig holds the history store connection details
type MongoDBConfig struct {
	ConnectionURL      string `mapstructure:"connection_url"`
	Database           string `mapstructure:"database"`
	DownloadCollection string `mapstructure:"download_collection"`
}

// TorrentWebUIConfig holds qBittorrent Web API connection details
type TorrentWebUIConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	DownloadRootPath string        `mapstructure:"download_root_path"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
	File   string `mapstructure:"file"`
}
