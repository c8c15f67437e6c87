package geocode

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Limits are the server-side defaults and caps for batch knobs.
type Limits struct {
	DefaultMaxGeocode  int
	MaxGeocodeCap      int
	DefaultConcurrency int
	ConcurrencyCap     int
}

// BatchRequest is one batch of candidates plus request-scoped knobs. The
// numeric knobs are clamped before use.
type BatchRequest struct {
	Items         []domain.Candidate
	MaxGeocode    int
	Concurrency   int
	NoCache       bool
	ForceProvider domain.Strategy
}

// ResolvedCandidate pairs a candidate with its result. Result is nil for
// candidates beyond the maxGeocode cap.
type ResolvedCandidate struct {
	Candidate domain.Candidate
	Result    *domain.GeocodeResult
}

// SingleResolver is what the orchestrator drives; *Resolver satisfies it.
type SingleResolver interface {
	Resolve(ctx context.Context, q domain.GeocodeQuery, opts ResolveOptions) domain.GeocodeResult
}

// Orchestrator resolves batches with a per-request worker pool.
type Orchestrator struct {
	resolver SingleResolver
	limits   Limits
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator creates an orchestrator bound to the given limits.
func NewOrchestrator(resolver SingleResolver, limits Limits, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{resolver: resolver, limits: limits, logger: logger, metrics: metrics}
}

// Defaults returns the maxGeocode and concurrency used when a request omits them.
func (o *Orchestrator) Defaults() (maxGeocode, concurrency int) {
	return o.limits.DefaultMaxGeocode, o.limits.DefaultConcurrency
}

// Clamp applies the server caps to requested knobs.
func (o *Orchestrator) Clamp(maxGeocode, concurrency int) (int, int) {
	return clamp(maxGeocode, 0, o.limits.MaxGeocodeCap), clamp(concurrency, 1, o.limits.ConcurrencyCap)
}

// ResolveBatch resolves the first MaxGeocode candidates in input order and
// passes the rest through untouched. The output has the same length and
// order as req.Items.
func (o *Orchestrator) ResolveBatch(ctx context.Context, req BatchRequest) []ResolvedCandidate {
	start := time.Now()
	maxGeocode, workers := o.Clamp(req.MaxGeocode, req.Concurrency)
	selected := min(maxGeocode, len(req.Items))
	batchID := uuid.NewString()

	out := make([]ResolvedCandidate, len(req.Items))
	for i, c := range req.Items {
		out[i].Candidate = c
	}
	if o.metrics != nil {
		o.metrics.GeocodeBatchSize.Observe(float64(len(req.Items)))
		o.metrics.GeocodeBatchSelected.Observe(float64(selected))
	}
	if selected == 0 {
		return out
	}

	opts := ResolveOptions{NoCache: req.NoCache, ForceProvider: req.ForceProvider}
	jobs := make(chan int)

	var g errgroup.Group
	for range min(workers, selected) {
		g.Go(func() error {
			for i := range jobs {
				res := o.resolveOne(ctx, req.Items[i], opts)
				out[i].Result = &res
			}
			return nil
		})
	}

	dispatched := 0
dispatch:
	for ; dispatched < selected; dispatched++ {
		select {
		case jobs <- dispatched:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	_ = g.Wait()

	// Selected but never dispatched because the request was cancelled.
	for i := dispatched; i < selected; i++ {
		res := domain.FailedResult(ctx.Err(), req.Items[i].RawAddress)
		out[i].Result = &res
	}

	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.GeocodeBatchDuration.Observe(elapsed.Seconds())
	}
	o.logger.Info("geocode batch complete",
		"batch_id", batchID,
		"candidates", len(req.Items),
		"selected", selected,
		"workers", min(workers, selected),
		"cancelled", selected-dispatched,
		"duration", elapsed,
	)
	return out
}

func (o *Orchestrator) resolveOne(ctx context.Context, c domain.Candidate, opts ResolveOptions) domain.GeocodeResult {
	if o.metrics != nil {
		o.metrics.GeocodeInFlight.Inc()
		defer o.metrics.GeocodeInFlight.Dec()
	}
	return o.resolver.Resolve(ctx, c.Query(), opts)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
