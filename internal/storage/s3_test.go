package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/workout-session/internal/config"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        string
}

func fakeS3(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{r.Method, r.URL.Path, r.Header.Get("Content-Type"), string(body)})
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), reqs...)
	}
}

func newTestStorage(t *testing.T, endpoint string) FileStorage {
	t.Helper()
	st, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		BucketName:      "archive",
	})
	require.NoError(t, err)
	return st
}

func TestS3Storage_PutObject(t *testing.T) {
	srv, requests := fakeS3(t)
	st := newTestStorage(t, srv.URL)

	err := st.PutObject(context.Background(), "sessions/c1/s1.json", "application/json", []byte(`{"phase":"completed"}`))
	require.NoError(t, err)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/archive/sessions/c1/s1.json", reqs[0].path, "path-style addressing")
	assert.Equal(t, "application/json", reqs[0].contentType)
	assert.Equal(t, `{"phase":"completed"}`, reqs[0].body)
}

func TestS3Storage_DeleteObject(t *testing.T) {
	srv, requests := fakeS3(t)
	st := newTestStorage(t, srv.URL)

	require.NoError(t, st.DeleteObject(context.Background(), "sessions/c1/s1.json"))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].method)
	assert.Equal(t, "/archive/sessions/c1/s1.json", reqs[0].path)
}

func TestS3Storage_PresignedDownloadURL(t *testing.T) {
	srv, requests := fakeS3(t)
	st := newTestStorage(t, srv.URL)

	url, err := st.GeneratePresignedDownloadURL(context.Background(), "sessions/c1/s1.json", 0)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, srv.URL+"/archive/sessions/c1/s1.json?"), url)
	assert.Contains(t, url, "X-Amz-Expires=900", "zero expiry falls back to the default")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Empty(t, requests(), "presigning never calls the store")

	url, err = st.GeneratePresignedDownloadURL(context.Background(), "k", 2*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Expires=120")
}
