package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestDownloadSuccess(t *testing.T) {
	content := []byte("mod jar bytes")
	sum := sha256.Sum256(content)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Digest", "sha-256="+base64.StdEncoding.EncodeToString(sum[:]))
		w.Write(content)
	}))
	defer srv.Close()

	d := &Downloader{}
	var buf bytes.Buffer
	res, err := d.Download(context.Background(), srv.URL+"/m1.jar", &buf)
	require.NoError(t, err)

	assert.Equal(t, content, buf.Bytes())
	assert.Equal(t, int64(len(content)), res.Bytes)
	assert.Equal(t, sha256Hex(content), res.SHA256)
	assert.Equal(t, sha256Hex(content), res.AdvertisedSHA256)
}

func TestDownloadChecksumHeader(t *testing.T) {
	content := []byte("abc")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Checksum-Sha256", sha256Hex(content))
		w.Write(content)
	}))
	defer srv.Close()

	res, err := (&Downloader{}).Download(context.Background(), srv.URL, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, sha256Hex(content), res.AdvertisedSHA256)
}

func TestDownloadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := (&Downloader{}).Download(context.Background(), srv.URL+"/gone.jar", &bytes.Buffer{})
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Contains(t, err.Error(), "404")
}

func TestDownloadMaxSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	_, err := (&Downloader{MaxSize: 100}).Download(context.Background(), srv.URL, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDownloadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := (&Downloader{Timeout: 50 * time.Millisecond}).Download(context.Background(), srv.URL, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"host":"h","port":1}`))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	var out struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	require.NoError(t, DoJSON(nil, req, 0, &out))
	assert.Equal(t, "h", out.Host)
	assert.Equal(t, 1, out.Port)
}

func TestDoJSONMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	var out map[string]any
	err = DoJSON(nil, req, 0, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding JSON")
}

func TestAdvertisedDigestIgnoresOtherAlgorithms(t *testing.T) {
	h := http.Header{}
	h.Set("Digest", "md5=HUXZLQLMuI/KZ5KDcJPcOA==")
	assert.Empty(t, advertisedDigest(h))
}
