package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStore keeps lesson attachments (images, sample C sources).
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// CleanKey normalises a slash-separated key and rejects anything that would
// escape the store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	c := strings.TrimPrefix(path.Clean("/"+key), "/")
	if c == "" || c == "." {
		return "", ErrInvalidKey
	}
	return c, nil
}

// LessonAssetKey is where a lesson's attachment named name lives.
func LessonAssetKey(lessonID, name string) (string, error) {
	if lessonID == "" || name == "" || strings.ContainsAny(name, "/\\") {
		return "", ErrInvalidKey
	}
	return CleanKey("lessons/" + lessonID + "/" + name)
}
