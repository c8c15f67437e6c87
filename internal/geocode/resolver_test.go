package geocode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/cache"
	"github.com/couchcryptid/incident-geocode-service/internal/centroid"
	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubProvider is a hand-written domain.Provider that counts calls and
// tracks how many are running at once.
type stubProvider struct {
	name  domain.Strategy
	delay time.Duration
	fn    func(q domain.ProviderQuery) (domain.Coordinates, error)

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu      sync.Mutex
	queries []domain.ProviderQuery
}

func (p *stubProvider) Name() domain.Strategy { return p.name }

func (p *stubProvider) Resolve(ctx context.Context, q domain.ProviderQuery) (domain.Match, error) {
	p.calls.Add(1)
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		m := p.maxInFlight.Load()
		if n <= m || p.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return domain.Match{}, fmt.Errorf("%w: %w", domain.ErrProviderFailed, ctx.Err())
		}
	}
	match := domain.Match{Query: string(p.name) + ":" + q.Address}
	c, err := p.fn(q)
	if err != nil {
		return match, err
	}
	match.Coordinates = c
	return match, nil
}

func (p *stubProvider) lastQuery() domain.ProviderQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries[len(p.queries)-1]
}

func succeed(c domain.Coordinates) func(domain.ProviderQuery) (domain.Coordinates, error) {
	return func(domain.ProviderQuery) (domain.Coordinates, error) { return c, nil }
}

func failWith(err error) func(domain.ProviderQuery) (domain.Coordinates, error) {
	return func(domain.ProviderQuery) (domain.Coordinates, error) { return domain.Coordinates{}, err }
}

var (
	errTimeout  = fmt.Errorf("%w: context deadline exceeded", domain.ErrProviderFailed)
	errNoResult = fmt.Errorf("stub: %w", domain.ErrNoMatch)

	exact = domain.Coordinates{Lat: 33.4808, Lon: -117.1305}
)

type fixture struct {
	apple, census, nominatim *stubProvider
	cache                    *cache.Layered
	metrics                  *observability.Metrics
	resolver                 *Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		apple:     &stubProvider{name: domain.StrategyApple, fn: failWith(errTimeout)},
		census:    &stubProvider{name: domain.StrategyCensus, fn: failWith(errNoResult)},
		nominatim: &stubProvider{name: domain.StrategyNominatim, fn: failWith(errTimeout)},
		metrics:   observability.NewMetricsForTesting(),
	}
	f.cache = cache.NewLayered(cache.Options{
		Clock:      clockwork.NewFakeClock(),
		MemoryTTL:  72 * time.Hour,
		MemorySize: 1000,
	}, nil, nil, discardLogger(), f.metrics)
	f.resolver = NewResolver(
		[]domain.Provider{f.apple, f.census, f.nominatim},
		centroid.Default(),
		f.cache,
		discardLogger(),
		f.metrics,
	)
	return f
}

func (f *fixture) totalCalls() int32 {
	return f.apple.calls.Load() + f.census.calls.Load() + f.nominatim.calls.Load()
}

func TestResolve_FirstProviderWins(t *testing.T) {
	f := newFixture(t)
	f.apple.fn = succeed(exact)

	res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{
		RawAddress: "31000 TEMECULA PKWY", Area: "TEMECULA", Station: "southwest",
	}, ResolveOptions{})

	assert.Equal(t, domain.StrategyApple, res.Strategy)
	assert.False(t, res.Approximate)
	assert.False(t, res.CentroidUsed)
	require.True(t, res.HasCoordinates())
	assert.InDelta(t, exact.Lat, *res.Lat, 0)
	assert.Equal(t, "apple:31000 TEMECULA PKWY", res.Query)
	assert.Equal(t, "33.531600,-117.168600", res.UserLocationHint)
	assert.Equal(t, int32(0), f.census.calls.Load())
}

func TestResolve_FallsThroughInOrder(t *testing.T) {
	f := newFixture(t)
	f.nominatim.fn = succeed(exact)

	res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{RawAddress: "31000 TEMECULA PKWY", Area: "TEMECULA"}, ResolveOptions{})

	assert.Equal(t, domain.StrategyNominatim, res.Strategy)
	assert.Equal(t, int32(1), f.apple.calls.Load())
	assert.Equal(t, int32(1), f.census.calls.Load())
	assert.Equal(t, int32(1), f.nominatim.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ProviderRequests.WithLabelValues("apple", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ProviderRequests.WithLabelValues("census", "no_match")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ProviderRequests.WithLabelValues("nominatim", "success")), 0)
}

func TestResolve_ProvidersReceiveCleanedAddress(t *testing.T) {
	f := newFixture(t)
	f.census.fn = succeed(exact)

	f.resolver.Resolve(context.Background(), domain.GeocodeQuery{
		RawAddress: "41XX *** BLOCK MAIN ST", Area: "TEMECULA", Station: "southwest",
	}, ResolveOptions{})

	q := f.census.lastQuery()
	assert.Equal(t, "4100 MAIN ST", q.Address)
	assert.Equal(t, "TEMECULA", q.Area)
	require.NotNil(t, q.UserLocation)
}

func TestResolve_RejectedInputMakesNoProviderCalls(t *testing.T) {
	for _, addr := range []string{"", "  ", "123", "UNKNOWN", "Confidential", "ADDRESS WITHHELD", "*** BLOCK", "41XX BLOCK"} {
		t.Run(addr, func(t *testing.T) {
			f := newFixture(t)
			f.apple.fn = succeed(exact)

			res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{RawAddress: addr, Area: "TEMECULA", Station: "southwest"}, ResolveOptions{})

			assert.Equal(t, domain.StrategyNone, res.Strategy)
			assert.NotEmpty(t, res.Error)
			assert.False(t, res.HasCoordinates())
			assert.Equal(t, int32(0), f.totalCalls())
		})
	}
}

func TestResolve_CacheShortCircuitsAcrossStations(t *testing.T) {
	f := newFixture(t)
	f.census.fn = succeed(exact)
	ctx := context.Background()

	first := f.resolver.Resolve(ctx, domain.GeocodeQuery{RawAddress: "31000 Temecula Pkwy", Area: "TEMECULA", Station: "southwest"}, ResolveOptions{})
	require.Equal(t, domain.StrategyCensus, first.Strategy)
	calls := f.totalCalls()

	second := f.resolver.Resolve(ctx, domain.GeocodeQuery{RawAddress: "  31000  TEMECULA PKWY ", Area: "temecula", Station: "perris"}, ResolveOptions{})

	assert.Equal(t, calls, f.totalCalls(), "cache hit must not call providers")
	assert.Equal(t, domain.StrategyCensus, second.Strategy)
	assert.Equal(t, *first.Lat, *second.Lat)
	assert.Equal(t, *first.Lon, *second.Lon)
}

func TestResolve_NoCacheBypassesReadsAndWrites(t *testing.T) {
	f := newFixture(t)
	f.census.fn = succeed(exact)
	ctx := context.Background()
	q := domain.GeocodeQuery{RawAddress: "31000 TEMECULA PKWY", Area: "TEMECULA"}

	f.resolver.Resolve(ctx, q, ResolveOptions{NoCache: true})
	_, ok := f.cache.Get(ctx, domain.CacheKey(q))
	assert.False(t, ok, "noCache must not write")

	f.resolver.Resolve(ctx, q, ResolveOptions{})
	f.resolver.Resolve(ctx, q, ResolveOptions{NoCache: true})
	assert.Equal(t, int32(3), f.census.calls.Load(), "noCache must not read")
}

func TestResolve_TemeculaCentroidScenario(t *testing.T) {
	f := newFixture(t)
	f.census.fn = failWith(errTimeout)

	res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{
		RawAddress: "4100 *** BLOCK COUNTY CENTER DR", Area: "TEMECULA", Station: "southwest",
	}, ResolveOptions{})

	assert.True(t, res.Approximate)
	assert.True(t, res.CentroidUsed)
	assert.Equal(t, domain.StrategyCentroid, res.Strategy)
	c, ok := res.Coordinates()
	require.True(t, ok)
	southwest, level, _ := centroid.Default().Lookup("southwest", "TEMECULA")
	assert.Equal(t, centroid.LevelStation, level)
	assert.Equal(t, southwest, c)
	assert.Equal(t, int32(3), f.totalCalls())
	assert.Equal(t, "4100 COUNTY CENTER DR", f.apple.lastQuery().Address)
}

func TestResolve_CentroidIsNeverCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := domain.GeocodeQuery{RawAddress: "4100 COUNTY CENTER DR", Area: "TEMECULA", Station: "southwest"}

	first := f.resolver.Resolve(ctx, q, ResolveOptions{})
	require.Equal(t, domain.StrategyCentroid, first.Strategy)
	_, ok := f.cache.Get(ctx, domain.CacheKey(q))
	require.False(t, ok)

	second := f.resolver.Resolve(ctx, q, ResolveOptions{})
	assert.Equal(t, domain.StrategyCentroid, second.Strategy)
	assert.Equal(t, int32(6), f.totalCalls(), "second call must recompute, not hit a cache")
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.Resolutions.WithLabelValues("centroid")), 0)
}

func TestResolve_NoCentroidAvailable(t *testing.T) {
	f := newFixture(t)
	f.resolver = NewResolver([]domain.Provider{f.census}, centroid.New(nil, nil, nil), f.cache, discardLogger(), nil)

	res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{RawAddress: "1 NOWHERE RD", Area: "ATLANTIS"}, ResolveOptions{})

	assert.Equal(t, domain.StrategyNone, res.Strategy)
	assert.False(t, res.HasCoordinates())
	assert.Contains(t, res.Error, domain.ErrNoCentroid.Error())
	assert.Contains(t, res.Error, domain.ErrAllProvidersFailed.Error())
	assert.Equal(t, "census:1 NOWHERE RD", res.Query)
}

func TestResolve_ForceProvider(t *testing.T) {
	f := newFixture(t)
	f.apple.fn = succeed(exact)
	f.nominatim.fn = succeed(domain.Coordinates{Lat: 33.5, Lon: -117.2})

	res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{RawAddress: "31000 TEMECULA PKWY", Area: "TEMECULA"},
		ResolveOptions{ForceProvider: domain.StrategyNominatim})

	assert.Equal(t, domain.StrategyNominatim, res.Strategy)
	assert.Equal(t, int32(0), f.apple.calls.Load())
	assert.Equal(t, int32(0), f.census.calls.Load())
	assert.Empty(t, res.UserLocationHint, "hint only reported when the premium provider was asked")
}

func TestResolve_ForcedProviderNotEnabled(t *testing.T) {
	f := newFixture(t)
	f.resolver = NewResolver([]domain.Provider{f.census}, centroid.Default(), f.cache, discardLogger(), nil)

	res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{RawAddress: "31000 TEMECULA PKWY", Area: "TEMECULA"},
		ResolveOptions{ForceProvider: domain.StrategyApple})

	assert.Equal(t, domain.StrategyCentroid, res.Strategy)
	assert.Equal(t, int32(0), f.census.calls.Load())
}

func TestResolve_NoProvidersConfigured(t *testing.T) {
	r := NewResolver(nil, centroid.Default(), nil, discardLogger(), nil)

	res := r.Resolve(context.Background(), domain.GeocodeQuery{RawAddress: "3900 MAIN ST", Area: "RIVERSIDE"}, ResolveOptions{})

	assert.Equal(t, domain.StrategyCentroid, res.Strategy)
	assert.Equal(t, "3900 MAIN ST, RIVERSIDE", res.Query)
}

func TestResolve_CancelledContextStopsChain(t *testing.T) {
	f := newFixture(t)
	f.apple.delay = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.resolver.Resolve(ctx, domain.GeocodeQuery{RawAddress: "31000 TEMECULA PKWY", Area: "TEMECULA"}, ResolveOptions{})

	assert.Equal(t, int32(1), f.totalCalls())
	assert.Equal(t, domain.StrategyCentroid, res.Strategy)
}

func TestNewResolver_ProvidersEnabledGauge(t *testing.T) {
	m := observability.NewMetricsForTesting()
	census := &stubProvider{name: domain.StrategyCensus}
	r := NewResolver([]domain.Provider{census}, nil, nil, discardLogger(), m)

	assert.Equal(t, []domain.Strategy{domain.StrategyCensus}, r.Providers())
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProvidersEnabled.WithLabelValues("census")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ProvidersEnabled.WithLabelValues("apple")), 0)
}

func TestResolve_ErrorCarriesProviderCauses(t *testing.T) {
	f := newFixture(t)
	f.resolver = NewResolver([]domain.Provider{f.census}, centroid.New(nil, nil, nil), nil, discardLogger(), nil)

	res := f.resolver.Resolve(context.Background(), domain.GeocodeQuery{RawAddress: "1 NOWHERE RD"}, ResolveOptions{})
	assert.Contains(t, res.Error, domain.ErrNoMatch.Error())
	assert.Contains(t, res.Error, domain.ErrNoCentroid.Error())
}
