package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/s0up4200/removeqtorrent/config"
	"github.com/s0up4200/removeqtorrent/history"
	"github.com/s0up4200/removeqtorrent/media"
	"github.com/s0up4200/removeqtorrent/qbittorrent"
	"github.com/s0up4200/removeqtorrent/remover"
)

var (
	version   = "dev"
	buildTime = "unknown"

	cfgFile string
	envFile string
	cfg     *config.Config
	logger  zerolog.Logger

	// Command flags
	hash        string
	deleteFiles bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "removeqtorrent --hash <hash>",
	Short: "Record the media files of a finished torrent and remove it from qBittorrent",
	Long: `removeqtorrent is meant to be called by qBittorrent when a torrent finishes.

It logs in to the qBittorrent Web API, lists the files of the torrent,
records every media file into the MongoDB download history and removes the
torrent from qBittorrent. Downloaded data is kept on disk unless
--delete-files is given.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRemove,
}

// SetVersion sets the version reported by --version
func SetVersion(v, built string) {
	version = v
	buildTime = built
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&hash, "hash", "", "hash of the torrent to remove")
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./config/settings.yaml)")
	rootCmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading the environment (default is ./.env when present)")
	rootCmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "also delete the downloaded data from disk")

	if err := rootCmd.MarkFlagRequired("hash"); err != nil {
		panic(err)
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var closeLog func() error
	logger, closeLog, err = setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info().Str("hash", hash).Msg("Executing command")

	ctx := context.Background()
	if err := remove(ctx); err != nil {
		logger.Error().Err(err).Str("hash", hash).Msg("Command failed")
		return err
	}

	logger.Info().Str("hash", hash).Msg("Command completed successfully")
	return nil
}

// remove wires the clients from cfg and runs a single removal
func remove(ctx context.Context) error {
	classifier := media.NewClassifier(afero.NewOsFs(), cfg.VideoMimeTypes)

	torrents, err := qbittorrent.NewClient(
		cfg.TorrentWebUI.BaseURL,
		cfg.TorrentWebUI.Username,
		cfg.TorrentWebUI.Password,
		classifier,
		logger,
		qbittorrent.WithDownloadRoot(cfg.TorrentWebUI.DownloadRootPath),
		qbittorrent.WithTimeout(cfg.TorrentWebUI.Timeout),
		qbittorrent.WithUserAgent("removeqtorrent/"+version),
	)
	if err != nil {
		return fmt.Errorf("failed to create qBittorrent client: %w", err)
	}

	docs, err := history.NewMongoStore(ctx, cfg.MongoDB.ConnectionURL, cfg.MongoDB.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := docs.Close(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}()

	store := history.NewStore(docs, cfg.MongoDB.DownloadCollection, logger)

	return remover.New(torrents, store, deleteFiles, logger).Run(ctx, hash)
}
