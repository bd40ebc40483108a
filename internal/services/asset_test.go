package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timepulse/timepulse-api/internal/storage"
)

type memoryStore struct {
	objects map[string]string
	types   map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string]string{}, types: map[string]string{}}
}

func (m *memoryStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (*storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	m.objects[key] = string(data)
	m.types[key] = contentType
	return &storage.Object{Key: key, URL: m.PublicURL(key)}, nil
}

func (m *memoryStore) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	var out []storage.Object
	for key, data := range m.objects {
		out = append(out, storage.Object{Key: key, Size: int64(len(data)), URL: m.PublicURL(key)})
	}
	return out, nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) PublicURL(key string) string {
	return "https://assets.timepulse.fr/" + key
}

func TestAssetKey(t *testing.T) {
	assert.True(t, strings.HasSuffix(AssetKey("Logo.PNG", "image/png"), ".png"))
	assert.True(t, strings.HasSuffix(AssetKey("photo.jpeg", "image/jpeg"), ".jpg"))
	assert.True(t, strings.HasSuffix(AssetKey("banner", "image/webp"), ".webp"))
	assert.True(t, strings.HasSuffix(AssetKey("logo.svg", "image/png"), ".png"))
	assert.NotEqual(t, AssetKey("a.png", "image/png"), AssetKey("a.png", "image/png"))
}

func TestAssetService_Upload(t *testing.T) {
	store := newMemoryStore()
	svc := NewAssetService(store)

	obj, err := svc.Upload(context.Background(), "logo.png", "image/png", 4, strings.NewReader("\x89PNG"))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.URL, "https://assets.timepulse.fr/"))
	assert.Equal(t, int64(4), obj.Size)
	assert.Equal(t, "image/png", store.types[obj.Key])
}

func TestAssetService_Upload_Rejected(t *testing.T) {
	svc := NewAssetService(newMemoryStore())

	_, err := svc.Upload(context.Background(), "doc.pdf", "application/pdf", 10, strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, ErrAssetTypeNotAllowed)

	_, err = svc.Upload(context.Background(), "logo.svg", "image/svg+xml", 64, strings.NewReader("<svg><script/></svg>"))
	assert.ErrorIs(t, err, ErrAssetTypeNotAllowed)

	_, err = svc.Upload(context.Background(), "huge.png", "image/png", MaxAssetSize+1, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrAssetTooLarge)
}

func TestAssetService_NotConfigured(t *testing.T) {
	svc := NewAssetService(nil)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotConfigured)

	_, err = svc.Upload(context.Background(), "a.png", "image/png", 1, strings.NewReader("x"))
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}

func TestAssetService_Delete(t *testing.T) {
	store := newMemoryStore()
	store.objects["abc.png"] = "x"
	svc := NewAssetService(store)

	require.NoError(t, svc.Delete(context.Background(), "/abc.png"))
	assert.Empty(t, store.objects)

	assert.ErrorIs(t, svc.Delete(context.Background(), "../secrets"), ErrAssetKeyInvalid)
	assert.ErrorIs(t, svc.Delete(context.Background(), ""), ErrAssetKeyInvalid)
}
