package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotConfigured = errors.New("object storage is not configured")

// Object describes a stored file.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	URL          string    `json:"url"`
}

// ObjectStore is the bucket the email assets live in.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (*Object, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}
