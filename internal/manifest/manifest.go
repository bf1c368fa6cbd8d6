// Package manifest fetches the list of mods a server requires.
//
// Fetching is fail-open by default: when the manifest service cannot be
// reached or answers with something unusable, Fetch returns an empty
// manifest and no error, and the join continues as if the server required no
// mods. This keeps joining available at the cost of mod completeness. Strict
// mode reports the same conditions as *UnavailableError instead.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/fetch"
	"github.com/sealantern/quickjoin/internal/server"
)

// Entry is one mod a server requires.
type Entry struct {
	ModID         string
	DisplayName   string
	DownloadURL   string
	FileName      string
	ContentSource string // provenance hint, may carry "sha256:<hex>"
	SHA256        string // explicit expected digest, optional
	Required      bool
}

// ExpectedDigest returns the lowercase hex sha256 the file must have, or ""
// when neither SHA256 nor ContentSource declares one.
func (e Entry) ExpectedDigest() string {
	if d := normalizeDigest(e.SHA256); d != "" {
		return d
	}
	algo, val, ok := strings.Cut(e.ContentSource, ":")
	if ok && strings.EqualFold(strings.TrimSpace(algo), "sha256") {
		return normalizeDigest(val)
	}
	return ""
}

// Name returns the display name, falling back to the mod ID.
func (e Entry) Name() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.ModID
}

type wireEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
	FileName    string `json:"file_name"`
	Source      string `json:"source"`
	SHA256      string `json:"sha256,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// UnavailableError is returned in strict mode when no usable manifest could
// be obtained.
type UnavailableError struct {
	Server server.Identifier
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("manifest unavailable for %s: %s", e.Server, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves manifests from the manifest service.
type Fetcher struct {
	BaseURL string
	Client  fetch.HTTPClient
	Timeout time.Duration
	MaxSize int64 // max response size in bytes (0 = no limit)
	Strict  bool
	Logger  zerolog.Logger
}

// Fetch returns the manifest for id in the order the service listed it.
// See the package documentation for the failure policy. Context
// cancellation is always reported.
func (f *Fetcher) Fetch(ctx context.Context, id server.Identifier) ([]Entry, error) {
	entries, err := f.fetch(ctx, id)
	if err == nil {
		f.Logger.Debug().Str("server", id.String()).Int("mods", len(entries)).Msg("Fetched manifest")
		return entries, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if f.Strict {
		return nil, &UnavailableError{Server: id, Err: err}
	}

	f.Logger.Warn().Err(err).Str("server", id.String()).Msg("Manifest unavailable, continuing without mods")
	return []Entry{}, nil
}

func (f *Fetcher) fetch(ctx context.Context, id server.Identifier) ([]Entry, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(f.BaseURL, "/") + "/api/mods/server/" + url.PathEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var wire []wireEntry
	if err := fetch.DoJSON(f.Client, req, f.MaxSize, &wire); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(wire))
	for _, w := range wire {
		entries = append(entries, Entry{
			ModID:         strings.TrimSpace(w.ID),
			DisplayName:   w.Name,
			DownloadURL:   strings.TrimSpace(w.DownloadURL),
			FileName:      w.FileName,
			ContentSource: w.Source,
			SHA256:        w.SHA256,
			Required:      w.Required,
		})
	}

	if errs := Validate(entries); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return entries, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ErrMalformed matches any *ValidationError via errors.Is.
var ErrMalformed = errors.New("malformed manifest")

func (e *ValidationError) Is(target error) bool {
	return target == ErrMalformed
}

// Validate checks a manifest for semantic correctness. File name safety is
// left to the sync engine, which rejects unsafe entries individually.
func Validate(entries []Entry) []string {
	var errs []string

	ids := make(map[string]bool)
	for i, e := range entries {
		prefix := fmt.Sprintf("mod[%d]", i)
		if e.ModID != "" {
			prefix = fmt.Sprintf("mod '%s'", e.ModID)
		}

		if e.ModID == "" {
			errs = append(errs, fmt.Sprintf("%s: 'id' is required", prefix))
		} else if ids[e.ModID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate mod id '%s'", prefix, e.ModID))
		} else {
			ids[e.ModID] = true
		}

		if e.FileName == "" {
			errs = append(errs, fmt.Sprintf("%s: 'file_name' is required", prefix))
		}

		if e.DownloadURL == "" {
			errs = append(errs, fmt.Sprintf("%s: 'download_url' is required", prefix))
		} else if u, err := url.Parse(e.DownloadURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("%s: 'download_url' must be an absolute http(s) URL", prefix))
		}

		if e.SHA256 != "" && normalizeDigest(e.SHA256) == "" {
			errs = append(errs, fmt.Sprintf("%s: 'sha256' must be 64 hex characters", prefix))
		}
	}

	return errs
}

func normalizeDigest(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != sha256.Size*2 {
		return ""
	}
	if _, err := hex.DecodeString(s); err != nil {
		return ""
	}
	return s
}
