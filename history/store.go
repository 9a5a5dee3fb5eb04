package history

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/s0up4200/removeqtorrent/qbittorrent"
)

// Record is a persisted entry for a downloaded media file
type Record struct {
	FileName     string    `bson:"file_name"`
	FileSize     int64     `bson:"file_size"`
	DownloadedAt time.Time `bson:"date_downloaded"`
}

// DocumentStore inserts documents into a named collection
type DocumentStore interface {
	InsertMany(ctx context.Context, collection string, docs []any) error
}

// Store appends history records for downloaded media files
type Store struct {
	docs       DocumentStore
	collection string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewStore creates a history store writing to collection
func NewStore(docs DocumentStore, collection string, logger zerolog.Logger) *Store {
	return &Store{
		docs:       docs,
		collection: collection,
		logger:     logger,
		now:        time.Now,
	}
}

// RecordDownloads writes one record per media file in a single bulk insert.
// Nothing is written when no file is flagged as media.
func (s *Store) RecordDownloads(ctx context.Context, files []qbittorrent.TorrentFile) error {
	media := qbittorrent.MediaFiles(files)
	if len(media) == 0 {
		s.logger.Info().
			Str("collection", s.collection).
			Int("files", len(files)).
			Msg("No media files found to insert in history")
		return nil
	}

	docs := make([]any, 0, len(media))
	for _, f := range media {
		if f.Size > math.MaxInt64 {
			return fmt.Errorf("%w: size of %s overflows int64: %d", ErrPersistence, f.Name, f.Size)
		}

		docs = append(docs, Record{
			FileName:     f.Name,
			FileSize:     int64(f.Size),
			DownloadedAt: s.now(),
		})
	}

	if err := s.docs.InsertMany(ctx, s.collection, docs); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Info().
		Str("collection", s.collection).
		Int("records", len(docs)).
		Msg("Download history updated")

	return nil
}
