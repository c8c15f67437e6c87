package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/geocode"
)

// IncidentNormalizer implements Normalizer for JSON incident feed records.
type IncidentNormalizer struct{}

// NewNormalizer creates an IncidentNormalizer.
func NewNormalizer() *IncidentNormalizer {
	return &IncidentNormalizer{}
}

func (IncidentNormalizer) Normalize(_ context.Context, raw domain.RawMessage) (domain.Incident, error) {
	rec, err := domain.ParseRawIncident(raw.Value)
	if err != nil {
		return domain.Incident{}, err
	}
	return domain.NormalizeIncident(rec)
}

// Annotator geocodes a batch of incidents; *geocode.Orchestrator satisfies it.
type Annotator interface {
	Annotate(ctx context.Context, incidents []domain.Incident, opts geocode.AnnotateOptions) ([]domain.Incident, geocode.BatchStats)
}

// GeocodeEnricher implements Enricher with the server's default batch knobs.
type GeocodeEnricher struct {
	annotator Annotator
	opts      geocode.AnnotateOptions
	logger    *slog.Logger
}

// NewGeocodeEnricher creates an enricher. Pass a nil annotator to publish
// incidents without coordinates.
func NewGeocodeEnricher(annotator Annotator, maxGeocode, concurrency int, logger *slog.Logger) *GeocodeEnricher {
	return &GeocodeEnricher{
		annotator: annotator,
		opts:      geocode.AnnotateOptions{MaxGeocode: maxGeocode, Concurrency: concurrency},
		logger:    logger,
	}
}

func (e *GeocodeEnricher) Enrich(ctx context.Context, incidents []domain.Incident) []domain.Incident {
	if e.annotator == nil {
		return incidents
	}
	out, stats := e.annotator.Annotate(ctx, incidents, e.opts)
	e.logger.Debug("batch geocoded",
		"total", stats.Total,
		"candidates", stats.Candidates,
		"resolved", stats.Resolved,
		"approximate", stats.Approximate,
		"failed", stats.Failed,
	)
	return out
}
