package remover

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/removeqtorrent/qbittorrent"
)

// ErrEmptyHash is returned when Run is called without a torrent hash.
var ErrEmptyHash = errors.New("torrent hash is required")

// Phase is a step of a removal run
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAuthenticating
	PhaseListing
	PhaseCompleting
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseListing:
		return "listing"
	case PhaseCompleting:
		return "completing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TorrentClient is the subset of the qBittorrent API used by a run
type TorrentClient interface {
	Login(ctx context.Context) (string, error)
	ListFiles(ctx context.Context, sid, hash string) ([]qbittorrent.TorrentFile, error)
	Delete(ctx context.Context, sid, hash string, deleteFiles bool) error
}

// HistoryRecorder persists the media files of a finished torrent
type HistoryRecorder interface {
	RecordDownloads(ctx context.Context, files []qbittorrent.TorrentFile) error
}

// Remover records the media files of a torrent and removes it from qBittorrent
type Remover struct {
	torrents    TorrentClient
	history     HistoryRecorder
	deleteFiles bool
	logger      zerolog.Logger
}

// New creates a Remover. Downloaded data is kept on disk unless
// deleteFiles is set.
func New(torrents TorrentClient, history HistoryRecorder, deleteFiles bool, logger zerolog.Logger) *Remover {
	return &Remover{
		torrents:    torrents,
		history:     history,
		deleteFiles: deleteFiles,
		logger:      logger,
	}
}

// Run logs in, lists the files of the torrent and then records history and
// deletes the torrent concurrently. Both completion steps always run to the
// end; if either fails the returned error joins every failure.
func (r *Remover) Run(ctx context.Context, hash string) error {
	if hash == "" {
		return ErrEmptyHash
	}

	logger := r.logger.With().Str("hash", hash).Logger()
	logger.Info().Msg("Removing torrent")

	phase := PhaseIdle
	enter := func(next Phase) {
		logger.Debug().Stringer("from", phase).Stringer("to", next).Msg("Phase transition")
		phase = next
	}
	fail := func(err error) error {
		logger.Debug().Stringer("phase", phase).Msg("Run failed")
		enter(PhaseFailed)
		return err
	}

	enter(PhaseAuthenticating)
	sid, err := r.torrents.Login(ctx)
	if err != nil {
		return fail(fmt.Errorf("login: %w", err))
	}

	enter(PhaseListing)
	files, err := r.torrents.ListFiles(ctx, sid, hash)
	if err != nil {
		return fail(fmt.Errorf("list files: %w", err))
	}

	enter(PhaseCompleting)
	if err := r.complete(ctx, sid, hash, files); err != nil {
		return fail(err)
	}

	enter(PhaseDone)
	logger.Info().Int("files", len(files)).Msg("Torrent removed")

	return nil
}

// complete runs the history write and the delete side by side. The group
// has no shared context so a failure on one side never cancels the other.
func (r *Remover) complete(ctx context.Context, sid, hash string, files []qbittorrent.TorrentFile) error {
	var (
		g         errgroup.Group
		recordErr error
		deleteErr error
	)

	historyFiles := slices.Clone(files)

	g.Go(func() error {
		if err := r.history.RecordDownloads(ctx, historyFiles); err != nil {
			recordErr = fmt.Errorf("record history: %w", err)
		}
		return recordErr
	})

	g.Go(func() error {
		if err := r.torrents.Delete(ctx, sid, hash, r.deleteFiles); err != nil {
			deleteErr = fmt.Errorf("delete torrent: %w", err)
		}
		return deleteErr
	})

	if err := g.Wait(); err != nil {
		if recordErr != nil && deleteErr == nil {
			r.logger.Warn().Str("hash", hash).Msg("Torrent deleted but history was not recorded")
		}
		if deleteErr != nil && recordErr == nil {
			r.logger.Warn().Str("hash", hash).Msg("History recorded but torrent was not deleted")
		}
		return errors.Join(recordErr, deleteErr)
	}

	return nil
}
