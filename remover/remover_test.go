package remover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/removeqtorrent/history"
	"github.com/s0up4200/removeqtorrent/media"
	"github.com/s0up4200/removeqtorrent/qbittorrent"
)

// fakeTorrents is an in-memory TorrentClient
type fakeTorrents struct {
	mu sync.Mutex

	sid       string
	files     []qbittorrent.TorrentFile
	loginErr  error
	listErr   error
	deleteErr error

	deleted     []string
	deleteFiles []bool
}

func (f *fakeTorrents) Login(ctx context.Context) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.sid, nil
}

func (f *fakeTorrents) ListFiles(ctx context.Context, sid, hash string) ([]qbittorrent.TorrentFile, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.files, nil
}

func (f *fakeTorrents) Delete(ctx context.Context, sid, hash string, deleteFiles bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, hash)
	f.deleteFiles = append(f.deleteFiles, deleteFiles)
	return f.deleteErr
}

// fakeHistory records what it was asked to persist
type fakeHistory struct {
	mu       sync.Mutex
	recorded [][]qbittorrent.TorrentFile
	err      error
}

func (f *fakeHistory) RecordDownloads(ctx context.Context, files []qbittorrent.TorrentFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recorded = append(f.recorded, files)
	return f.err
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseIdle, "idle"},
		{PhaseAuthenticating, "authenticating"},
		{PhaseListing, "listing"},
		{PhaseCompleting, "completing"},
		{PhaseDone, "done"},
		{PhaseFailed, "failed"},
		{Phase(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.phase.String())
		})
	}
}

func TestRunEmptyHash(t *testing.T) {
	torrents := &fakeTorrents{sid: "abc"}
	r := New(torrents, &fakeHistory{}, false, zerolog.Nop())

	err := r.Run(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyHash)
	assert.Empty(t, torrents.deleted)
}

func TestRun(t *testing.T) {
	files := []qbittorrent.TorrentFile{
		{Name: "movie.mkv", Size: 700000000, IsMedia: true},
		{Name: "readme.txt", Size: 120},
	}
	torrents := &fakeTorrents{sid: "abc", files: files}
	hist := &fakeHistory{}

	err := New(torrents, hist, false, zerolog.Nop()).Run(context.Background(), "deadbeef")
	require.NoError(t, err)

	require.Len(t, hist.recorded, 1)
	assert.Equal(t, files, hist.recorded[0])
	assert.Equal(t, []string{"deadbeef"}, torrents.deleted)
	assert.Equal(t, []bool{false}, torrents.deleteFiles)
}

func TestRunDeleteFiles(t *testing.T) {
	torrents := &fakeTorrents{sid: "abc"}

	err := New(torrents, &fakeHistory{}, true, zerolog.Nop()).Run(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, torrents.deleteFiles)
}

func TestRunPhaseOneFailures(t *testing.T) {
	tests := []struct {
		name     string
		torrents *fakeTorrents
		wantErr  error
	}{
		{
			name:     "login fails",
			torrents: &fakeTorrents{loginErr: qbittorrent.ErrAuthentication},
			wantErr:  qbittorrent.ErrAuthentication,
		},
		{
			name:     "list fails",
			torrents: &fakeTorrents{sid: "abc", listErr: qbittorrent.ErrTransport},
			wantErr:  qbittorrent.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist := &fakeHistory{}

			err := New(tt.torrents, hist, false, zerolog.Nop()).Run(context.Background(), "deadbeef")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, tt.torrents.deleted)
			assert.Empty(t, hist.recorded)
		})
	}
}

func TestRunPhaseTwoFailures(t *testing.T) {
	persistErr := fmt.Errorf("%w: boom", history.ErrPersistence)
	deleteErr := fmt.Errorf("%w: boom", qbittorrent.ErrDelete)

	tests := []struct {
		name      string
		recordErr error
		deleteErr error
		want      []error
	}{
		{
			name:      "history fails",
			recordErr: persistErr,
			want:      []error{history.ErrPersistence},
		},
		{
			name:      "delete fails",
			deleteErr: deleteErr,
			want:      []error{qbittorrent.ErrDelete},
		},
		{
			name:      "both fail",
			recordErr: persistErr,
			deleteErr: deleteErr,
			want:      []error{history.ErrPersistence, qbittorrent.ErrDelete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			torrents := &fakeTorrents{sid: "abc", deleteErr: tt.deleteErr}
			hist := &fakeHistory{err: tt.recordErr}

			err := New(torrents, hist, false, zerolog.Nop()).Run(context.Background(), "deadbeef")
			require.Error(t, err)
			for _, want := range tt.want {
				assert.ErrorIs(t, err, want)
			}

			// neither side is cancelled by the other's failure
			assert.Len(t, hist.recorded, 1)
			assert.Equal(t, []string{"deadbeef"}, torrents.deleted)
		})
	}
}

// blockingHistory waits until the delete has been issued before returning
type blockingHistory struct {
	deleted chan struct{}
}

func (b *blockingHistory) RecordDownloads(ctx context.Context, files []qbittorrent.TorrentFile) error {
	select {
	case <-b.deleted:
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("delete was not issued concurrently")
	}
}

type signallingTorrents struct {
	fakeTorrents
	deleted chan struct{}
}

func (s *signallingTorrents) Delete(ctx context.Context, sid, hash string, deleteFiles bool) error {
	close(s.deleted)
	return nil
}

func TestRunCompletesConcurrently(t *testing.T) {
	deleted := make(chan struct{})
	torrents := &signallingTorrents{fakeTorrents: fakeTorrents{sid: "abc"}, deleted: deleted}

	err := New(torrents, &blockingHistory{deleted: deleted}, false, zerolog.Nop()).Run(context.Background(), "deadbeef")
	require.NoError(t, err)
}

// EBML header of a Matroska file
var matroskaHeader = []byte{
	0x1A, 0x45, 0xDF, 0xA3, 0xA3,
	0x42, 0x86, 0x81, 0x01,
	0x42, 0xF7, 0x81, 0x01,
	0x42, 0xF2, 0x81, 0x04,
	0x42, 0xF3, 0x81, 0x08,
	0x42, 0x82, 0x88, 'm', 'a', 't', 'r', 'o', 's', 'k', 'a',
	0x42, 0x87, 0x81, 0x04,
	0x42, 0x85, 0x81, 0x02,
}

type memoryDocs struct {
	mu    sync.Mutex
	docs  []any
	calls int
	err   error
}

func (m *memoryDocs) InsertMany(ctx context.Context, collection string, docs []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return m.err
	}
	m.docs = append(m.docs, docs...)
	return nil
}

// fakeQBittorrent serves the three Web API endpoints
type fakeQBittorrent struct {
	mu        sync.Mutex
	filesBody string
	deletes   []url.Values
}

func (f *fakeQBittorrent) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Set-Cookie", "SID=abc123; HttpOnly; path=/")
		fmt.Fprint(w, "Ok.")
	})
	mux.HandleFunc("/api/v2/torrents/files", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SID=abc123", r.Header.Get("Cookie"))
		fmt.Fprint(w, f.filesBody)
	})
	mux.HandleFunc("/api/v2/torrents/delete", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SID=abc123", r.Header.Get("Cookie"))
		assert.NoError(t, r.ParseForm())

		f.mu.Lock()
		f.deletes = append(f.deletes, r.PostForm)
		f.mu.Unlock()
	})
	return mux
}

func (f *fakeQBittorrent) deleteCalls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.deletes...)
}

func newEndToEnd(t *testing.T, serverURL string, docs history.DocumentStore) *Remover {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/downloads/movie.mkv", matroskaHeader, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/downloads/readme.txt", []byte("release notes in plain text\n"), 0o644))

	classifier := media.NewClassifier(fs, nil)
	client, err := qbittorrent.NewClient(serverURL, "admin", "adminadmin", classifier, zerolog.Nop(),
		qbittorrent.WithDownloadRoot("/downloads"),
	)
	require.NoError(t, err)

	return New(client, history.NewStore(docs, "downloads", zerolog.Nop()), false, zerolog.Nop())
}

func TestEndToEnd(t *testing.T) {
	qbt := &fakeQBittorrent{
		filesBody: `[{"name":"movie.mkv","size":700000000},{"name":"readme.txt","size":120}]`,
	}
	server := httptest.NewServer(qbt.handler(t))
	defer server.Close()

	docs := &memoryDocs{}
	err := newEndToEnd(t, server.URL, docs).Run(context.Background(), "deadbeef")
	require.NoError(t, err)

	require.Len(t, docs.docs, 1)
	rec, ok := docs.docs[0].(history.Record)
	require.True(t, ok)
	assert.Equal(t, "movie.mkv", rec.FileName)
	assert.Equal(t, int64(700000000), rec.FileSize)
	assert.False(t, rec.DownloadedAt.IsZero())

	want, err := url.ParseQuery("hashes=deadbeef&deleteFiles=false")
	require.NoError(t, err)
	assert.Equal(t, []url.Values{want}, qbt.deleteCalls())
}

func TestEndToEndEmptyTorrent(t *testing.T) {
	qbt := &fakeQBittorrent{filesBody: `[]`}
	server := httptest.NewServer(qbt.handler(t))
	defer server.Close()

	docs := &memoryDocs{}
	err := newEndToEnd(t, server.URL, docs).Run(context.Background(), "deadbeef")
	require.NoError(t, err)

	assert.Zero(t, docs.calls)
	assert.Len(t, qbt.deleteCalls(), 1)
}

func TestEndToEndListTransportFailure(t *testing.T) {
	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Set-Cookie", "SID=abc123")
	})
	mux.HandleFunc("/api/v2/torrents/files", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	})
	mux.HandleFunc("/api/v2/torrents/delete", func(w http.ResponseWriter, r *http.Request) {
		deleted.Store(true)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	docs := &memoryDocs{}
	err := newEndToEnd(t, server.URL, docs).Run(context.Background(), "deadbeef")
	require.ErrorIs(t, err, qbittorrent.ErrTransport)
	assert.False(t, deleted.Load())
	assert.Zero(t, docs.calls)
}

func TestEndToEndStoreFailure(t *testing.T) {
	qbt := &fakeQBittorrent{
		filesBody: `[{"name":"movie.mkv","size":700000000}]`,
	}
	server := httptest.NewServer(qbt.handler(t))
	defer server.Close()

	docs := &memoryDocs{err: errors.New("write concern error")}
	err := newEndToEnd(t, server.URL, docs).Run(context.Background(), "deadbeef")
	require.ErrorIs(t, err, history.ErrPersistence)
	assert.NotErrorIs(t, err, qbittorrent.ErrDelete)

	assert.Equal(t, 1, docs.calls)
	assert.Len(t, qbt.deleteCalls(), 1)
}
