// Package resolve maps server identifiers to network addresses through the
// directory service.
package resolve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/fetch"
	"github.com/sealantern/quickjoin/internal/server"
)

// Resolver maps an identifier to an address.
type Resolver interface {
	Resolve(ctx context.Context, id server.Identifier) (server.Address, error)
}

// ErrServerOffline is the cause of an Error when the directory knows the
// server but reports it offline.
var ErrServerOffline = errors.New("server is offline")

// Error reports a failed resolution. It is fatal to a join.
type Error struct {
	Server server.Identifier
	Err    error
	Hint   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("resolving %s failed: %s", e.Server, e.Err)
	if e.Hint != "" {
		msg += " — " + e.Hint
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

type resolveRequest struct {
	ID string `json:"id"`
}

type resolveResponse struct {
	Host       string `json:"host"`
	Address    string `json:"address"`
	Port       int    `json:"port"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Players    *int   `json:"players"`
	MaxPlayers *int   `json:"max_players"`
}

// HTTPResolver asks the directory service with one POST per call.
// It never retries; see RetryResolver.
type HTTPResolver struct {
	BaseURL string
	Client  fetch.HTTPClient
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Resolve returns the validated address for id.
func (r *HTTPResolver) Resolve(ctx context.Context, id server.Identifier) (server.Address, error) {
	info, err := r.Lookup(ctx, id)
	if err != nil {
		return server.Address{}, err
	}
	return info.Address, nil
}

// Lookup returns everything the directory reports about id. Servers
// reported offline and malformed addresses are errors.
func (r *HTTPResolver) Lookup(ctx context.Context, id server.Identifier) (*server.Info, error) {
	if strings.TrimSpace(id.String()) == "" {
		return nil, server.ErrInvalidIdentifier
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(resolveRequest{ID: id.String()})
	if err != nil {
		return nil, &Error{Server: id, Err: fmt.Errorf("encoding request: %w", err)}
	}

	endpoint := strings.TrimRight(r.BaseURL, "/") + "/api/join/resolve"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Server: id, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	var resp resolveResponse
	if err := fetch.DoJSON(r.Client, req, 64<<10, &resp); err != nil {
		hint := "check that the server ID is correct"
		var fe *fetch.Error
		if errors.As(err, &fe) && fe.StatusCode == 0 {
			hint = "check network connectivity and api.base_url"
		}
		return nil, &Error{Server: id, Err: err, Hint: hint}
	}

	info := &server.Info{
		ID:         id,
		Name:       resp.Name,
		Address:    server.Address{Host: resp.Host, Port: resp.Port},
		Players:    resp.Players,
		MaxPlayers: resp.MaxPlayers,
	}
	if info.Address.Host == "" {
		info.Address.Host = resp.Address
	}
	info.Status, _ = server.ParseStatus(resp.Status)

	if err := info.Address.Validate(); err != nil {
		return nil, &Error{Server: id, Err: fmt.Errorf("directory returned an invalid address: %w", err)}
	}
	if info.Status == server.StatusOffline {
		return nil, &Error{Server: id, Err: ErrServerOffline, Hint: "try again when the server is online"}
	}

	r.Logger.Debug().
		Str("server", id.String()).
		Str("address", info.Address.String()).
		Dur("duration", time.Since(start)).
		Msg("Resolved server")

	return info, nil
}
