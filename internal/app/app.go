// Package app assembles the geocoding stack from configuration. Both the
// service and the diagnostic CLI build through here so they resolve
// addresses identically.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/incident-geocode-service/internal/adapter/apple"
	"github.com/couchcryptid/incident-geocode-service/internal/adapter/census"
	"github.com/couchcryptid/incident-geocode-service/internal/adapter/kvstore"
	"github.com/couchcryptid/incident-geocode-service/internal/adapter/nominatim"
	redisadapter "github.com/couchcryptid/incident-geocode-service/internal/adapter/redis"
	"github.com/couchcryptid/incident-geocode-service/internal/cache"
	"github.com/couchcryptid/incident-geocode-service/internal/centroid"
	"github.com/couchcryptid/incident-geocode-service/internal/config"
	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/geocode"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Stack is the wired resolver with its cache tiers.
type Stack struct {
	Cache        *cache.Layered
	Resolver     *geocode.Resolver
	Orchestrator *geocode.Orchestrator

	// Probes report on optional dependencies for /readyz.
	Probes []func(ctx context.Context) error

	closers []func() error
}

// Build wires providers, cache tiers, and the orchestrator from cfg. An
// unreachable edge tier is logged and skipped rather than failing startup.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Stack, error) {
	s := &Stack{}

	// Typed nils must not leak into the cache's Store interfaces.
	var edge, remote cache.Store
	if cfg.RedisURL != "" {
		store, err := redisadapter.Dial(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("edge cache unavailable, continuing without it", "error", err)
		} else {
			edge = store
			s.closers = append(s.closers, store.Close)
			s.Probes = append(s.Probes, store.Ping)
			logger.Info("edge cache enabled", "ttl", cfg.EdgeCacheTTL)
		}
	}
	if cfg.RemoteCacheURL != "" {
		remote = kvstore.NewClient(cfg.RemoteCacheURL, cfg.RemoteCacheToken, cfg.RemoteCacheTimeout)
		logger.Info("remote cache enabled", "url", cfg.RemoteCacheURL)
	}

	s.Cache = cache.NewLayered(cache.Options{
		Clock:        clockwork.NewRealClock(),
		MemoryTTL:    cfg.MemoryCacheTTL,
		MemorySize:   cfg.MemoryCacheSize,
		EdgeTTL:      cfg.EdgeCacheTTL,
		WriteTimeout: cfg.CacheWriteTimeout,
	}, edge, remote, logger, metrics)

	providers, err := buildProviders(cfg, logger, metrics)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	if len(providers) == 0 {
		logger.Warn("no geocoding providers enabled, every candidate will fall back to a centroid")
	}

	s.Resolver = geocode.NewResolver(providers, centroid.Default(), s.Cache, logger, metrics)
	s.Orchestrator = geocode.NewOrchestrator(s.Resolver, geocode.Limits{
		DefaultMaxGeocode:  cfg.DefaultMaxGeocode,
		MaxGeocodeCap:      cfg.MaxGeocodeCap,
		DefaultConcurrency: cfg.DefaultConcurrency,
		ConcurrencyCap:     cfg.ConcurrencyCap,
	}, logger, metrics)

	logger.Info("geocoder ready", "providers", s.Resolver.Providers())
	return s, nil
}

// buildProviders returns the enabled providers in chain order: premium,
// government, community.
func buildProviders(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) ([]domain.Provider, error) {
	var providers []domain.Provider

	if cfg.AppleEnabled {
		tokens, err := apple.NewTokenSource(cfg.AppleTeamID, cfg.AppleKeyID, cfg.ApplePrivateKey,
			cfg.AppleTokenTimeout, clockwork.NewRealClock(), metrics)
		if err != nil {
			return nil, fmt.Errorf("apple provider: %w", err)
		}
		providers = append(providers, apple.NewClient(tokens, cfg.AppleTimeout, logger))
	}
	if cfg.CensusEnabled {
		providers = append(providers, census.NewClient(cfg.CensusTimeout, cfg.Jurisdiction, logger))
	}
	if cfg.NominatimEnabled {
		providers = append(providers, nominatim.NewClient(cfg.NominatimTimeout, cfg.NominatimUserAgent,
			cfg.Jurisdiction, cfg.NominatimMaxRPS, logger))
	}
	return providers, nil
}

// Wait blocks until background cache writes finish.
func (s *Stack) Wait() {
	if s.Cache != nil {
		s.Cache.Wait()
	}
}

// Close releases cache connections. Call Wait first to flush pending writes.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
