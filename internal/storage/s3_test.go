package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/krelinga/video-generator/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	mu      sync.Mutex
	status  int
	methods []string
	paths   []string
	types   []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)
	f.mu.Lock()
	f.methods = append(f.methods, r.Method)
	f.paths = append(f.paths, r.URL.Path)
	f.types = append(f.types, r.Header.Get("Content-Type"))
	status := f.status
	f.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
		return
	}
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newTestStore(t *testing.T, endpoint string) *storage.S3Store {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	store, err := storage.NewS3Store(context.Background(), storage.S3Config{
		Bucket:          "videos",
		Prefix:          "generated",
		Endpoint:        endpoint,
		Region:          "us-east-1",
		PresignTTL:      15 * time.Minute,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	}, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestS3StorePut(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	store := newTestStore(t, srv.URL)

	got, err := store.Put(context.Background(), "job-1", "video/LTX_2_00001.mp4", []byte("mp4 data"))
	require.NoError(t, err)

	require.Equal(t, []string{http.MethodPut}, fake.methods)
	assert.Equal(t, "/videos/generated/job-1/LTX_2_00001.mp4", fake.paths[0])
	assert.Equal(t, "video/mp4", fake.types[0])

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "/videos/generated/job-1/LTX_2_00001.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestS3StorePutFailure(t *testing.T) {
	fake := &fakeS3{status: http.StatusForbidden}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	store := newTestStore(t, srv.URL)

	_, err := store.Put(context.Background(), "job-1", "clip.mp4", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrUpload)
}

func TestS3StoreKey(t *testing.T) {
	store := newTestStore(t, "http://127.0.0.1:1")
	assert.Equal(t, "generated/abc/clip.webm", store.Key("abc", "../../clip.webm"))
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := storage.NewS3Store(context.Background(), storage.S3Config{}, zerolog.Nop())
	assert.Error(t, err)
}
