// Package fetch is the HTTP transport shared by the directory, manifest and
// mod download clients.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient sends requests with http.DefaultClient.
type DefaultHTTPClient struct{}

func (DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req)
}

// ErrTooLarge is wrapped by Error when a body exceeds the configured limit.
var ErrTooLarge = errors.New("response exceeds size limit")

// Error describes a failed HTTP exchange.
type Error struct {
	URL        string
	Operation  string
	StatusCode int // 0 when no response was received
	Err        error
	Hint       string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s failed: %s", e.Operation, e.URL, e.Err)
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Downloader streams remote content into a writer while hashing it.
type Downloader struct {
	Client    HTTPClient
	MaxSize   int64         // max body size in bytes (0 = no limit)
	Timeout   time.Duration // per-download timeout (0 = context only)
	UserAgent string
}

// Result describes a completed transfer.
type Result struct {
	Bytes  int64
	SHA256 string // hex digest of the received bytes

	// AdvertisedSHA256 is the hex digest announced by the server through a
	// Digest or X-Checksum-Sha256 header, empty when none was sent.
	AdvertisedSHA256 string
}

// Download fetches url with GET and copies the body into w. The returned
// digest covers exactly the bytes written to w.
func (d *Downloader) Download(ctx context.Context, url string, w io.Writer) (*Result, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Operation: "download", Err: fmt.Errorf("creating request: %w", err)}
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}

	resp, err := client(d.Client).Do(req)
	if err != nil {
		return nil, &Error{URL: url, Operation: "download", Err: err, Hint: "check network connectivity and URL"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			URL:        url,
			Operation:  "download",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
			Hint:       "check that the mod source is reachable",
		}
	}

	var reader io.Reader = resp.Body
	if d.MaxSize > 0 {
		reader = io.LimitReader(resp.Body, d.MaxSize+1)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), reader)
	if err != nil {
		return nil, &Error{URL: url, Operation: "download", StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	if d.MaxSize > 0 && n > d.MaxSize {
		return nil, &Error{
			URL:        url,
			Operation:  "download",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w of %d bytes", ErrTooLarge, d.MaxSize),
			Hint:       "increase mods.max_size",
		}
	}

	return &Result{
		Bytes:            n,
		SHA256:           hex.EncodeToString(h.Sum(nil)),
		AdvertisedSHA256: advertisedDigest(resp.Header),
	}, nil
}

// DoJSON sends req and decodes a 2xx JSON response body into out. Bodies
// larger than maxSize bytes are rejected when maxSize > 0.
func DoJSON(c HTTPClient, req *http.Request, maxSize int64, out any) error {
	url := req.URL.String()
	op := strings.ToLower(req.Method)

	resp, err := client(c).Do(req)
	if err != nil {
		return &Error{URL: url, Operation: op, Err: err, Hint: "check network connectivity and api.base_url"}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{URL: url, Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var reader io.Reader = resp.Body
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return &Error{URL: url, Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return &Error{URL: url, Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w of %d bytes", ErrTooLarge, maxSize)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &Error{URL: url, Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding JSON: %w", err)}
	}
	return nil
}

func client(c HTTPClient) HTTPClient {
	if c == nil {
		return DefaultHTTPClient{}
	}
	return c
}

// advertisedDigest extracts a sha256 digest from RFC 3230 "Digest: sha-256=<b64>"
// or "X-Checksum-Sha256: <hex>" headers.
func advertisedDigest(h http.Header) string {
	for _, v := range h.Values("Digest") {
		for _, part := range strings.Split(v, ",") {
			algo, val, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok || !strings.EqualFold(algo, "sha-256") {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(val)
			if err != nil || len(raw) != sha256.Size {
				continue
			}
			return hex.EncodeToString(raw)
		}
	}
	if v := strings.ToLower(strings.TrimSpace(h.Get("X-Checksum-Sha256"))); len(v) == sha256.Size*2 {
		if _, err := hex.DecodeString(v); err == nil {
			return v
		}
	}
	return ""
}
