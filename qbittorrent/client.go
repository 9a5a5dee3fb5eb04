package qbittorrent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// SIDKey is the name of the session cookie issued by qBittorrent
const SIDKey = "SID"

const (
	loginPath  = "/api/v2/auth/login"
	filesPath  = "/api/v2/torrents/files"
	deletePath = "/api/v2/torrents/delete"
)

// Classifier decides whether a local file is a media file
type Classifier interface {
	IsMedia(path string) (bool, error)
}

// Client talks to the qBittorrent Web API
type Client struct {
	baseURL      string
	username     string
	password     string
	downloadRoot string
	userAgent    string
	httpClient   *http.Client
	classifier   Classifier
	logger       zerolog.Logger
}

// NewClient creates a new qBittorrent client. No request is made until Login.
func NewClient(baseURL, username, password string, classifier Classifier, logger zerolog.Logger, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("qBittorrent URL is required")
	}
	if classifier == nil {
		return nil, fmt.Errorf("media classifier is required")
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if o.timeout > 0 {
		httpClient.Timeout = o.timeout
	}

	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		downloadRoot: o.downloadRoot,
		userAgent:    o.userAgent,
		httpClient:   httpClient,
		classifier:   classifier,
		logger:       logger,
	}, nil
}

// Login authenticates and returns the session token
func (c *Client) Login(ctx context.Context) (string, error) {
	params := url.Values{
		"username": {c.username},
		"password": {c.password},
	}

	resp, err := c.post(ctx, loginPath, "", params)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	headers := resp.Header.Values("Set-Cookie")
	if len(headers) == 0 {
		return "", fmt.Errorf("%w: no cookies found in response headers", ErrAuthentication)
	}

	for _, h := range headers {
		sid, ok := parseSID(h)
		if !ok {
			continue
		}
		if sid == "" {
			return "", fmt.Errorf("%w: empty %s cookie", ErrAuthentication, SIDKey)
		}

		c.logger.Debug().Msg("Obtained qBittorrent session")
		return sid, nil
	}

	return "", fmt.Errorf("%w: no %s cookie found in response", ErrAuthentication, SIDKey)
}

// ListFiles returns the files of the torrent identified by hash, each
// classified against the local download root.
func (c *Client) ListFiles(ctx context.Context, sid, hash string) ([]TorrentFile, error) {
	resp, err := c.post(ctx, filesPath, sid, url.Values{"hash": {hash}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrTransport, filesPath, resp.StatusCode, string(body))
	}

	var files []TorrentFile
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, &DecodeError{Body: string(body), Err: err}
	}

	for i := range files {
		files[i].IsMedia = c.classify(files[i].Name)
	}

	c.logger.Info().
		Str("hash", hash).
		Int("files", len(files)).
		Int("media", len(MediaFiles(files))).
		Msg("Retrieved torrent files")

	return files, nil
}

// Delete removes the torrent. When deleteFiles is set qBittorrent also
// removes the downloaded data.
func (c *Client) Delete(ctx context.Context, sid, hash string, deleteFiles bool) error {
	params := url.Values{
		"hashes":      {hash},
		"deleteFiles": {strconv.FormatBool(deleteFiles)},
	}

	resp, err := c.post(ctx, deletePath, sid, params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("%w: %s returned status %d", ErrDelete, deletePath, resp.StatusCode)
	}

	c.logger.Info().
		Str("hash", hash).
		Bool("delete_files", deleteFiles).
		Msg("Deleted torrent")

	return nil
}

func (c *Client) classify(name string) bool {
	path := filepath.Join(c.downloadRoot, name)

	isMedia, err := c.classifier.IsMedia(path)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("Could not classify file, treating as non-media")
		return false
	}

	return isMedia
}

// post sends a form-encoded request, attaching the session cookie when sid is set
func (c *Client) post(ctx context.Context, endpoint, sid string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrTransport, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sid != "" {
		req.Header.Set("Cookie", SIDKey+"="+sid)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug().Str("endpoint", endpoint).Msg("Making qBittorrent API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, endpoint, err)
	}

	return resp, nil
}

// parseSID extracts the session token from a Set-Cookie value. The token is
// everything between "SID=" and the first ';' or the end of the value.
func parseSID(header string) (string, bool) {
	prefix := SIDKey + "="

	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if sid, ok := strings.CutPrefix(part, prefix); ok {
			return sid, true
		}
	}

	return "", false
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
