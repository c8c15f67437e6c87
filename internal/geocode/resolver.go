// Package geocode turns incident addresses into coordinates. The Resolver
// walks the cache, an ordered provider chain and a centroid fallback for one
// address; the Orchestrator fans a batch of candidates out over a bounded
// worker pool.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/centroid"
	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
)

// Cache is the subset of the layered cache the resolver needs.
type Cache interface {
	Get(ctx context.Context, key string) (domain.CachedGeocode, bool)
	Set(ctx context.Context, key string, v domain.CachedGeocode)
}

// ResolveOptions are the per-request knobs.
type ResolveOptions struct {
	NoCache       bool            // bypass cache reads and writes
	ForceProvider domain.Strategy // empty means the full chain
}

// Resolver resolves a single address.
type Resolver struct {
	providers []domain.Provider
	centroids *centroid.Table
	cache     Cache
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewResolver builds a resolver. providers are tried in slice order; cache
// may be nil.
func NewResolver(providers []domain.Provider, centroids *centroid.Table, cache Cache, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	r := &Resolver{
		providers: providers,
		centroids: centroids,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
	}
	if metrics != nil {
		enabled := map[domain.Strategy]bool{}
		for _, p := range providers {
			enabled[p.Name()] = true
		}
		for _, s := range []domain.Strategy{domain.StrategyApple, domain.StrategyCensus, domain.StrategyNominatim} {
			v := 0.0
			if enabled[s] {
				v = 1
			}
			metrics.ProvidersEnabled.WithLabelValues(string(s)).Set(v)
		}
	}
	return r
}

// Providers reports the configured chain in order.
func (r *Resolver) Providers() []domain.Strategy {
	names := make([]domain.Strategy, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve never returns an error: failures are recorded on the result with
// strategy none.
func (r *Resolver) Resolve(ctx context.Context, q domain.GeocodeQuery, opts ResolveOptions) domain.GeocodeResult {
	res := r.resolve(ctx, q, opts)
	if r.metrics != nil {
		r.metrics.Resolutions.WithLabelValues(string(res.Strategy)).Inc()
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, q domain.GeocodeQuery, opts ResolveOptions) domain.GeocodeResult {
	key := domain.CacheKey(q)
	cleaned := domain.CleanAddress(q.RawAddress)
	query := domain.JoinQuery(cleaned, q.Area)

	if !opts.NoCache && r.cache != nil {
		if v, ok := r.cache.Get(ctx, key); ok {
			r.logger.Debug("geocode cache hit", "key", key, "strategy", v.Strategy)
			return v.Result(query)
		}
	}

	if err := domain.RejectAddress(q.RawAddress); err != nil {
		r.logger.Debug("address rejected", "address", q.RawAddress, "error", err)
		return domain.FailedResult(err, q.RawAddress)
	}

	chain, err := r.chain(opts.ForceProvider)
	hint, _, hasHint := r.centroids.Lookup(q.Station, q.Area)
	pq := domain.ProviderQuery{Address: cleaned, Area: q.Area}
	if hasHint {
		pq.UserLocation = &hint
	}

	var (
		errs        []error
		usedHint    bool
		lastQuery   = query
		providerRes *domain.GeocodeResult
	)
	if err != nil {
		errs = append(errs, err)
	}
	for _, p := range chain {
		if p.Name() == domain.StrategyApple && hasHint {
			usedHint = true
		}
		m, err := r.call(ctx, p, pq)
		if m.Query != "" {
			lastQuery = m.Query
		}
		if err == nil {
			res := domain.ProviderResult(p.Name(), m.Coordinates, m.Query)
			providerRes = &res
			break
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	var res domain.GeocodeResult
	if providerRes != nil {
		res = *providerRes
	} else {
		if len(errs) == 0 {
			errs = append(errs, errors.New("no providers configured"))
		}
		chainErr := fmt.Errorf("%w: %w", domain.ErrAllProvidersFailed, errors.Join(errs...))
		res = r.fallback(q, lastQuery, chainErr)
	}
	if usedHint {
		res.UserLocationHint = hint.String()
	}

	if !opts.NoCache && r.cache != nil && res.Cacheable() {
		if v, ok := domain.ToCached(res); ok {
			r.cache.Set(ctx, key, v)
		}
	}
	return res
}

// chain returns the providers to try. A forced provider that is not
// configured yields an empty chain and an error, which sends the request
// straight to the centroid fallback.
func (r *Resolver) chain(force domain.Strategy) ([]domain.Provider, error) {
	if force == "" {
		return r.providers, nil
	}
	for _, p := range r.providers {
		if p.Name() == force {
			return []domain.Provider{p}, nil
		}
	}
	return nil, fmt.Errorf("%w: provider %s is not enabled", domain.ErrProviderFailed, force)
}

func (r *Resolver) call(ctx context.Context, p domain.Provider, pq domain.ProviderQuery) (domain.Match, error) {
	start := time.Now()
	m, err := p.Resolve(ctx, pq)
	elapsed := time.Since(start)

	outcome := "success"
	switch {
	case errors.Is(err, domain.ErrNoMatch):
		outcome = "no_match"
		r.logger.Debug("provider returned no match", "provider", p.Name(), "query", m.Query)
	case err != nil:
		outcome = "error"
		r.logger.Warn("provider failed", "provider", p.Name(), "query", m.Query, "error", err)
	}
	if r.metrics != nil {
		r.metrics.ProviderRequests.WithLabelValues(string(p.Name()), outcome).Inc()
		r.metrics.ProviderDuration.WithLabelValues(string(p.Name())).Observe(elapsed.Seconds())
	}
	return m, err
}

func (r *Resolver) fallback(q domain.GeocodeQuery, query string, chainErr error) domain.GeocodeResult {
	c, level, ok := r.centroids.Lookup(q.Station, q.Area)
	if !ok {
		err := fmt.Errorf("%w: %w", domain.ErrNoCentroid, chainErr)
		r.logger.Warn("geocode failed", "address", q.RawAddress, "error", err)
		return domain.FailedResult(err, query)
	}
	r.logger.Info("using centroid fallback",
		"address", q.RawAddress,
		"station", q.Station,
		"area", q.Area,
		"level", level,
		"error", chainErr,
	)
	return domain.CentroidResult(c, query)
}
