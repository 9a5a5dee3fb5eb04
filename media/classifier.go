package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

const (
	mimeTypeUnknown = "application/octet-stream"
	videoCategory   = "video/"
)

// ErrUndetermined is returned when the content of a file matches no known type.
var ErrUndetermined = errors.New("could not determine mime type")

// Classifier decides whether a file is a media file by sniffing its content
type Classifier struct {
	fs      afero.Fs
	allowed []string
}

// NewClassifier creates a classifier reading files from fs. The allowed
// mime types are treated as media in addition to anything under video/.
func NewClassifier(fs afero.Fs, allowed []string) *Classifier {
	normalized := make([]string, 0, len(allowed))
	for _, m := range allowed {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			normalized = append(normalized, m)
		}
	}

	return &Classifier{
		fs:      fs,
		allowed: normalized,
	}
}

// Detect returns the sniffed mime type of the file at path
func (c *Classifier) Detect(path string) (*mimetype.MIME, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to sniff %s: %w", path, err)
	}

	if mtype == nil || mtype.Is(mimeTypeUnknown) {
		return nil, fmt.Errorf("%w: %s", ErrUndetermined, path)
	}

	return mtype, nil
}

// IsMedia reports whether the file at path is a media file. A file whose
// type cannot be sniffed is never media; the error says why.
func (c *Classifier) IsMedia(path string) (bool, error) {
	mtype, err := c.Detect(path)
	if err != nil {
		return false, err
	}

	for _, allowed := range c.allowed {
		if mtype.Is(allowed) {
			return true, nil
		}
	}

	return strings.HasPrefix(strings.ToLower(mtype.String()), videoCategory), nil
}

// Allowed returns the normalized allow-list
func (c *Classifier) Allowed() []string {
	return append([]string(nil), c.allowed...)
}
