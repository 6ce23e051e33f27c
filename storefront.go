// Package storefront is the embeddable client core of the storefront app:
// cart state across the guest/authenticated boundary, OTP sign-in, profile,
// and catalog reads. UI code constructs one Client and talks only to it.
package storefront

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/aromahaus/storefront-client/internal/auth"
	"github.com/aromahaus/storefront-client/internal/cart"
	"github.com/aromahaus/storefront-client/internal/catalog"
	"github.com/aromahaus/storefront-client/internal/user"
	"github.com/aromahaus/storefront-client/pkg/backend"
	"github.com/aromahaus/storefront-client/pkg/cache"
	"github.com/aromahaus/storefront-client/pkg/config"
	"github.com/aromahaus/storefront-client/pkg/kvstore"
	"github.com/aromahaus/storefront-client/pkg/logger"
	"github.com/aromahaus/storefront-client/pkg/metrics"
)

// Client is the assembled object graph. Fields are the only surfaces UI
// code should hold on to.
type Client struct {
	Cart    *cart.Coordinator
	Auth    auth.Service
	User    user.Service
	Catalog catalog.Service

	Identity *auth.Identity

	store   *kvstore.Store
	cache   cache.Cache
	logger  *logger.Logger
	metrics *metrics.ClientMetrics
}

// Options tunes construction beyond what config carries.
type Options struct {
	// Registerer receives the client metrics; nil disables them.
	Registerer prometheus.Registerer
	// Logger overrides the default logger built from config.
	Logger *logger.Logger
}

// New builds the whole client core: local store, cache, backend client,
// cart stores, and the services on top. Everything is wired here exactly
// once; nothing constructs collaborators internally.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Client, error) {
	logg := opts.Logger
	if logg == nil {
		logg = logger.New(logger.Options{
			ServiceName: "storefront-client",
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		})
	}

	store, err := kvstore.Open(ctx, cfg.Storage, logg)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	cacheClient, err := newCache(ctx, cfg.Cache)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	clientMetrics := metrics.NewClientMetrics(opts.Registerer)

	identity := auth.NewIdentity(ctx, store, logg)

	backendClient, err := backend.NewClient(cfg.Backend, identity, logg, backend.WithMetrics(clientMetrics))
	if err != nil {
		_ = store.Close()
		_ = cacheClient.Close()
		return nil, fmt.Errorf("building backend client: %w", err)
	}

	guest := cart.NewGuestStore(ctx, store, logg)
	mirror := cart.NewMirror()
	session := cart.NewSessionPointer(ctx, store, logg)

	coordinator := cart.NewCoordinator(cart.CoordinatorParams{
		Guest:   guest,
		Mirror:  mirror,
		Session: session,
		Auth:    identity,
		Backend: backendClient,
		Logger:  logg,
		Metrics: clientMetrics,
	})

	authService := auth.NewService(auth.ServiceParams{
		Backend:  backendClient,
		Identity: identity,
		Guest:    guest,
		Mirror:   mirror,
		Session:  session,
		Cache:    cacheClient,
		Logger:   logg,
		Metrics:  clientMetrics,
	})

	userService := user.NewService(user.ServiceParams{
		Backend:  backendClient,
		Identity: identity,
		Cache:    cacheClient,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logg,
	})

	var catalogService catalog.Service
	if cfg.Content.BaseURL != "" || cfg.Content.ProjectID != "" {
		contentClient, err := catalog.NewContentClient(cfg.Content, logg)
		if err != nil {
			_ = store.Close()
			_ = cacheClient.Close()
			return nil, fmt.Errorf("building content client: %w", err)
		}
		catalogService = catalog.NewService(catalog.ServiceParams{
			Content:  contentClient,
			Cache:    cacheClient,
			CacheTTL: cfg.Cache.TTL,
			Logger:   logg,
		})
	}

	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "storefront client ready")

	return &Client{
		Cart:     coordinator,
		Auth:     authService,
		User:     userService,
		Catalog:  catalogService,
		Identity: identity,
		store:    store,
		cache:    cacheClient,
		logger:   logg,
		metrics:  clientMetrics,
	}, nil
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		redisCache, err := cache.NewRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("building redis cache: %w", err)
		}
		return redisCache, nil
	default:
		return cache.NewMemory(), nil
	}
}

// Close releases the local store and cache.
func (c *Client) Close() error {
	return multierr.Combine(c.store.Close(), c.cache.Close())
}
