package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local writes objects under a directory. The website serves the directory
// at baseURL.
type Local struct {
	dir     string
	baseURL string
}

var _ Uploader = (*Local)(nil)

// NewLocal returns an uploader rooted at dir.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory.
func (l *Local) Dir() string { return l.dir }

// Upload implements Uploader. Existing objects are kept unless
// opts.Upsert is set.
func (l *Local) Upload(ctx context.Context, objectPath string, body io.Reader, opts UploadOptions) error {
	p, err := CleanPath(objectPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dst := filepath.Join(l.dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	if !opts.Upsert {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("object %s already exists", p)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename object: %w", err)
	}
	return nil
}

// PublicURL implements Uploader.
func (l *Local) PublicURL(objectPath string) string {
	return l.baseURL + "/" + objectPath
}
