// Package storage persists rendered report artifacts.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Object describes a stored artifact. URL is set when the backend can hand
// out a download link.
type Object struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	URL      string `json:"url,omitempty"`
	Size     int64  `json:"size"`
}

// Store writes artifacts under slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*Object, error)
}

// Filesystem stores artifacts below a root directory.
type Filesystem struct {
	root   string
	logger logging.Logger
}

// NewFilesystem returns a Filesystem rooted at dir, creating it if needed.
func NewFilesystem(dir string, logger logging.Logger) (*Filesystem, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeInvalidArguments, "artifacts dir %q", dir)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnavailable, "create artifacts dir %q", abs)
	}
	return &Filesystem{root: abs, logger: logger.Named("artifacts")}, nil
}

// Put writes data atomically: a temporary file in the target directory is
// renamed into place.
func (f *Filesystem) Put(ctx context.Context, key string, data []byte, _ string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(err)
	}
	path, err := f.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeUnavailable, "create %q", filepath.Dir(path))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "create artifact")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "write artifact")
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "write artifact")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "write artifact")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "store artifact")
	}

	f.logger.Debug("artifact stored", logging.String("path", path), logging.Int("bytes", len(data)))
	return &Object{Key: key, Location: path, Size: int64(len(data))}, nil
}

// resolve maps key below the root, rejecting keys that escape it.
func (f *Filesystem) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrCodeInvalidArguments, "invalid artifact key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}
