package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/timepulse/timepulse-api/internal/storage"
)

const MaxAssetSize = 5 << 20

var (
	ErrAssetTooLarge       = errors.New("asset exceeds the maximum size")
	ErrAssetTypeNotAllowed = errors.New("only images can be uploaded")
	ErrAssetKeyInvalid     = errors.New("invalid asset key")
)

var imageExtensions = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
}

// AssetService manages the images embedded in email templates.
type AssetService struct {
	store storage.ObjectStore
}

// NewAssetService accepts a nil store; every call then fails with storage.ErrNotConfigured.
func NewAssetService(store storage.ObjectStore) *AssetService {
	return &AssetService{store: store}
}

// AssetKey derives the stored key: a fresh uuid with the extension implied by
// the content type, so the key never disagrees with what was accepted.
// The filename's extension is only used for unknown types.
func AssetKey(filename, contentType string) string {
	ext, ok := imageExtensions[contentType]
	if !ok {
		ext = strings.ToLower(filepath.Ext(filename))
	}
	return uuid.New().String() + ext
}

func (s *AssetService) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*storage.Object, error) {
	if s.store == nil {
		return nil, storage.ErrNotConfigured
	}
	if _, ok := imageExtensions[contentType]; !ok {
		return nil, ErrAssetTypeNotAllowed
	}
	if size > MaxAssetSize {
		return nil, ErrAssetTooLarge
	}

	obj, err := s.store.Upload(ctx, AssetKey(filename, contentType), contentType, io.LimitReader(body, MaxAssetSize))
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}
	obj.Size = size
	return obj, nil
}

func (s *AssetService) List(ctx context.Context) ([]storage.Object, error) {
	if s.store == nil {
		return nil, storage.ErrNotConfigured
	}
	return s.store.List(ctx, "")
}

func (s *AssetService) Delete(ctx context.Context, key string) error {
	if s.store == nil {
		return storage.ErrNotConfigured
	}
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return ErrAssetKeyInvalid
	}
	return s.store.Delete(ctx, key)
}
