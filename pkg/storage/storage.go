// Package storage uploads avatar images to object storage.
//
// Backends:
//   - [Supabase]: the Supabase Storage REST API
//   - [S3]: any S3-compatible bucket through aws-sdk-go-v2
//   - [Local]: a directory served by the website itself
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/matzehuels/dbdev/pkg/errors"
)

// AvatarCacheControl caches uploaded avatars for a year. Avatar paths embed
// a timestamp, so a new upload never reuses a URL.
const AvatarCacheControl = "max-age=31536000"

// UploadOptions are the object metadata sent with an upload.
type UploadOptions struct {
	CacheControl string
	ContentType  string
	Upsert       bool
}

// Uploader stores objects and resolves their public URLs.
type Uploader interface {
	Upload(ctx context.Context, objectPath string, body io.Reader, opts UploadOptions) error
	PublicURL(objectPath string) string
}

// CleanPath validates an object path: relative, slash-separated, without
// parent references or empty segments.
func CleanPath(objectPath string) (string, error) {
	if objectPath == "" || strings.HasPrefix(objectPath, "/") || strings.Contains(objectPath, "\\") {
		return "", errors.NewValidation("path", "invalid object path %q", objectPath)
	}
	for _, seg := range strings.Split(objectPath, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", errors.NewValidation("path", "invalid object path %q", objectPath)
		}
	}
	return path.Clean(objectPath), nil
}
