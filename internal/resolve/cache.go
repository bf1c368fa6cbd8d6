package resolve

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/server"
)

// Store persists successful resolutions.
type Store interface {
	Get(ctx context.Context, id server.Identifier) (addr server.Address, resolvedAt time.Time, found bool, err error)
	Put(ctx context.Context, id server.Identifier, addr server.Address, resolvedAt time.Time) error
}

// CachingResolver serves resolutions younger than TTL from Store and
// records fresh ones. Store failures only cost a directory round trip.
type CachingResolver struct {
	Next   Resolver
	Store  Store
	TTL    time.Duration
	Now    func() time.Time
	Logger zerolog.Logger
}

func (c *CachingResolver) Resolve(ctx context.Context, id server.Identifier) (server.Address, error) {
	now := c.now()

	if c.TTL > 0 {
		addr, at, found, err := c.Store.Get(ctx, id)
		switch {
		case err != nil:
			c.Logger.Warn().Err(err).Str("server", id.String()).Msg("Resolution cache read failed")
		case found && now.Sub(at) < c.TTL && addr.Validate() == nil:
			c.Logger.Debug().Str("server", id.String()).Str("address", addr.String()).Msg("Resolved from cache")
			return addr, nil
		}
	}

	addr, err := c.Next.Resolve(ctx, id)
	if err != nil {
		return server.Address{}, err
	}

	if c.TTL > 0 {
		if err := c.Store.Put(ctx, id, addr, now); err != nil {
			c.Logger.Warn().Err(err).Str("server", id.String()).Msg("Resolution cache write failed")
		}
	}
	return addr, nil
}

func (c *CachingResolver) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
