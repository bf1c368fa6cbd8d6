// Package quickjoin provides the public Go library API for quickjoin.
//
// quickjoin connects a player to a game server from a short server
// identifier: it resolves the identifier through the directory service,
// brings the local mod directory in line with the server's mod manifest and
// hands the address to the game launcher.
//
// # Basic Usage
//
//	cfg, err := config.Default()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := quickjoin.New(quickjoin.Options{Config: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Join(ctx, "manus-test")
//	if err != nil {
//	    // result.Stage() names where the join stopped
//	}
//
//	// Only bring mods up to date
//	outcome, err := client.SyncMods(ctx, "manus-test")
package quickjoin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealantern/quickjoin/internal/cache"
	"github.com/sealantern/quickjoin/internal/config"
	"github.com/sealantern/quickjoin/internal/fetch"
	"github.com/sealantern/quickjoin/internal/join"
	"github.com/sealantern/quickjoin/internal/launch"
	"github.com/sealantern/quickjoin/internal/logging"
	"github.com/sealantern/quickjoin/internal/manifest"
	"github.com/sealantern/quickjoin/internal/modsync"
	"github.com/sealantern/quickjoin/internal/rescache"
	"github.com/sealantern/quickjoin/internal/resolve"
	"github.com/sealantern/quickjoin/internal/server"
)

// Version is set at build time.
var Version = "dev"

// Options configures a quickjoin Client.
type Options struct {
	// Config is the decoded configuration. Required.
	Config *config.Config

	// HTTPClient is used for every request. Default: http.DefaultClient.
	HTTPClient fetch.HTTPClient

	// Launcher replaces the process launcher built from Config.Launch.
	Launcher launch.Launcher

	// Observer receives join state transitions.
	Observer join.Observer

	Logger zerolog.Logger
}

// Client is the main entry point for the quickjoin library.
type Client struct {
	cfg       *config.Config
	lookup    *resolve.HTTPResolver
	resolver  resolve.Resolver
	store     *rescache.Store
	manifests *manifest.Fetcher
	engine    *modsync.Engine
	orch      *join.Orchestrator
	logger    zerolog.Logger
}

// New creates a Client from opts. Call Close when done.
func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("quickjoin: Options.Config is required")
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, &config.ValidationError{Errors: errs}
	}

	log := opts.Logger
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = fetch.DefaultHTTPClient{}
	}

	c := &Client{cfg: cfg, logger: log}

	c.lookup = &resolve.HTTPResolver{
		BaseURL: cfg.API.BaseURL,
		Client:  httpClient,
		Timeout: cfg.Timeouts.Resolve,
		Logger:  logging.Component(log, "resolve"),
	}
	c.resolver = c.lookup
	if cfg.Resolve.Attempts > 1 {
		c.resolver = &resolve.RetryResolver{
			Next:     c.resolver,
			Attempts: cfg.Resolve.Attempts,
			Delay:    cfg.Resolve.RetryDelay,
			Logger:   logging.Component(log, "resolve"),
		}
	}
	if cfg.Resolve.CacheTTL > 0 {
		store, err := rescache.Open(cfg.Resolve.CachePath, log)
		if err != nil {
			return nil, fmt.Errorf("opening resolution cache: %w", err)
		}
		if n, err := store.Purge(context.Background(), time.Now().Add(-cfg.Resolve.CacheTTL)); err != nil {
			log.Warn().Err(err).Msg("Could not purge resolution cache")
		} else if n > 0 {
			log.Debug().Int64("purged", n).Msg("Purged expired resolutions")
		}
		c.store = store
		c.resolver = &resolve.CachingResolver{
			Next:   c.resolver,
			Store:  store,
			TTL:    cfg.Resolve.CacheTTL,
			Logger: logging.Component(log, "rescache"),
		}
	}

	c.manifests = &manifest.Fetcher{
		BaseURL: cfg.API.BaseURL,
		Client:  httpClient,
		Timeout: cfg.Timeouts.Manifest,
		MaxSize: 8 << 20,
		Strict:  cfg.Manifest.Strict,
		Logger:  logging.Component(log, "manifest"),
	}

	c.engine = &modsync.Engine{
		Downloader: &fetch.Downloader{
			Client:    httpClient,
			MaxSize:   cfg.Mods.MaxSize,
			Timeout:   cfg.Timeouts.Download,
			UserAgent: "quickjoin/" + Version,
		},
		Concurrency: cfg.Mods.Concurrency,
		Logger:      logging.Component(log, "modsync"),
	}
	if cfg.Mods.CacheDir != "" {
		mc, err := cache.New(cfg.Mods.CacheDir)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("initializing mod cache: %w", err)
		}
		c.engine.Cache = mc
	}

	launcher := opts.Launcher
	if launcher == nil {
		launcher = &launch.ProcessLauncher{
			Command: cfg.Launch.Command,
			Args:    cfg.Launch.Args,
			Env:     cfg.Launch.Env,
			Grace:   cfg.Launch.Grace,
			Logger:  logging.Component(log, "launch"),
		}
	}

	c.orch = &join.Orchestrator{
		Resolver:  c.resolver,
		Manifests: c.manifests,
		Mods:      c.engine,
		Launcher: &launch.Handoff{
			Launcher: launcher,
			Timeout:  cfg.Timeouts.Launch,
			Logger:   logging.Component(log, "launch"),
		},
		ModsDir: cfg.Mods.Dir,
		Policy: join.Policy{
			RequiredMods:          cfg.Policy.RequiredMods,
			HonorManifestRequired: cfg.Policy.HonorManifestRequired,
			AbortOnAnyFailure:     cfg.Policy.AbortOnAnyFailure,
		},
		Observer: opts.Observer,
		Logger:   logging.Component(log, "join"),
	}

	return c, nil
}

// Close releases the resolution cache.
func (c *Client) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// ModsDir returns the mod directory the client manages.
func (c *Client) ModsDir() string {
	return c.cfg.Mods.Dir
}

// Join runs a full join attempt for a raw server identifier.
func (c *Client) Join(ctx context.Context, id string) (*JoinResult, error) {
	done := logging.OperationStart(c.logger, "join")
	defer done()
	return c.orch.Join(ctx, id)
}

// Resolve maps a raw identifier to its address using the configured retry
// and cache policy.
func (c *Client) Resolve(ctx context.Context, raw string) (server.Address, error) {
	id, err := server.ParseIdentifier(raw)
	if err != nil {
		return server.Address{}, err
	}
	return c.resolver.Resolve(ctx, id)
}

// Lookup asks the directory service for everything it reports about a
// server, bypassing the resolution cache.
func (c *Client) Lookup(ctx context.Context, raw string) (*ServerInfo, error) {
	id, err := server.ParseIdentifier(raw)
	if err != nil {
		return nil, err
	}
	return c.lookup.Lookup(ctx, id)
}

// Manifest returns the mod manifest of a server.
func (c *Client) Manifest(ctx context.Context, raw string) ([]ModEntry, error) {
	id, err := server.ParseIdentifier(raw)
	if err != nil {
		return nil, err
	}
	return c.manifests.Fetch(ctx, id)
}

// Plan reports what a sync for the server would do without touching the
// mod directory.
func (c *Client) Plan(ctx context.Context, raw string) ([]PlanEntry, error) {
	entries, err := c.Manifest(ctx, raw)
	if err != nil {
		return nil, err
	}
	return c.engine.Plan(ctx, entries, c.cfg.Mods.Dir)
}

// SyncMods brings the mod directory in line with the server's manifest
// without launching the game.
func (c *Client) SyncMods(ctx context.Context, raw string) (*SyncOutcome, error) {
	entries, err := c.Manifest(ctx, raw)
	if err != nil {
		return nil, err
	}
	return c.engine.Sync(ctx, entries, c.cfg.Mods.Dir)
}

// Check verifies installed mods against the digests recorded when they were
// written.
func (c *Client) Check(ctx context.Context) (*CheckResult, error) {
	return modsync.Check(ctx, c.cfg.Mods.Dir)
}
