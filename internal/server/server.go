// Package server defines the values exchanged at the start of a join: the
// user-supplied identifier, the resolved network address and the status a
// directory service reports for a server.
package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidIdentifier is returned for identifiers that are empty after trimming.
var ErrInvalidIdentifier = errors.New("invalid server identifier: must not be empty")

// Identifier is an opaque, user-supplied server identifier.
// It is not guaranteed to be an address and must be resolved.
type Identifier string

// ParseIdentifier trims raw and rejects empty or whitespace-only input.
func ParseIdentifier(raw string) (Identifier, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrInvalidIdentifier
	}
	return Identifier(id), nil
}

func (id Identifier) String() string { return string(id) }

// Address is a resolved network endpoint. Values are never mutated after
// resolution.
type Address struct {
	Host string
	Port int
}

// Validate reports whether the address is usable for a connection.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if a.Port < 1 || a.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", a.Port)
	}
	return nil
}

// String renders host:port, bracketing IPv6 literals.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Status is the availability a directory reports for a server.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusLoading Status = "loading"
)

// ParseStatus maps a wire value onto a Status. Unknown or empty values are
// reported as StatusLoading with ok=false.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOnline:
		return StatusOnline, true
	case StatusOffline:
		return StatusOffline, true
	case StatusLoading:
		return StatusLoading, true
	default:
		return StatusLoading, false
	}
}

// Label is the human-readable form used in CLI output.
func (s Status) Label() string {
	switch s {
	case StatusOnline:
		return "Online"
	case StatusOffline:
		return "Offline"
	default:
		return "Loading..."
	}
}

// Info is what the directory service knows about a server beyond its address.
type Info struct {
	ID         Identifier
	Name       string
	Address    Address
	Status     Status
	Players    *int
	MaxPlayers *int
}
