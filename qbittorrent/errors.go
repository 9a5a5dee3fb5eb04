package qbittorrent

import (
	"errors"
	"fmt"
)

// Common errors returned by the qBittorrent client.
var (
	// ErrAuthentication is returned when login does not yield a session cookie.
	ErrAuthentication = errors.New("qBittorrent authentication failed")

	// ErrTransport is returned when a request to qBittorrent cannot be completed.
	ErrTransport = errors.New("qBittorrent request failed")

	// ErrDelete is returned when the delete request fails.
	ErrDelete = errors.New("failed to delete torrent")
)

// DecodeError is returned when the file list response is not valid JSON.
// Body holds the raw response for diagnostics.
type DecodeError struct {
	Body string
	Err  error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("could not decode torrent files: %v: %q", e.Err, e.Body)
}

// Unwrap returns the underlying JSON error
func (e *DecodeError) Unwrap() error {
	return e.Err
}
