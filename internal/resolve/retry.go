package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/server"
)

// RetryResolver is the explicit, bounded retry policy applied around a
// Resolver at the join boundary. Attempts <= 1 means a single try.
type RetryResolver struct {
	Next     Resolver
	Attempts int
	Delay    time.Duration
	Logger   zerolog.Logger
}

func (r *RetryResolver) Resolve(ctx context.Context, id server.Identifier) (server.Address, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		addr, err := r.Next.Resolve(ctx, id)
		if err == nil {
			return addr, nil
		}
		lastErr = err

		if i == attempts || !retryable(ctx, err) {
			break
		}

		r.Logger.Info().Err(err).Str("server", id.String()).Int("attempt", i).Msg("Resolution failed, retrying")

		if r.Delay > 0 {
			t := time.NewTimer(r.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return server.Address{}, &Error{Server: id, Err: ctx.Err()}
			case <-t.C:
			}
		}
	}
	return server.Address{}, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, server.ErrInvalidIdentifier) && !errors.Is(err, ErrServerOffline)
}
