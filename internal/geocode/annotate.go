package geocode

import (
	"context"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
)

// AnnotateOptions are the request knobs for Annotate. Zero values for
// MaxGeocode and Concurrency are taken literally; callers substitute
// Defaults() when the client omitted them.
type AnnotateOptions struct {
	MaxGeocode    int
	Concurrency   int
	NoCache       bool
	ForceProvider domain.Strategy
}

// BatchStats summarizes one annotated batch.
type BatchStats struct {
	Total       int `json:"total"`
	Candidates  int `json:"candidates"`
	Attempted   int `json:"attempted"`
	Resolved    int `json:"resolved"`
	Approximate int `json:"approximate"`
	Failed      int `json:"failed"`
}

// Annotate geocodes the candidate incidents in place of order. Incidents
// whose address is not a candidate, and candidates beyond the maxGeocode cap,
// are returned unchanged with no coordinates.
func (o *Orchestrator) Annotate(ctx context.Context, incidents []domain.Incident, opts AnnotateOptions) ([]domain.Incident, BatchStats) {
	out := make([]domain.Incident, len(incidents))
	copy(out, incidents)
	stats := BatchStats{Total: len(incidents)}

	var (
		items   []domain.Candidate
		indexes []int
	)
	for i, inc := range incidents {
		if domain.IsCandidate(inc) {
			items = append(items, inc.Candidate())
			indexes = append(indexes, i)
		}
	}
	stats.Candidates = len(items)

	resolved := o.ResolveBatch(ctx, BatchRequest{
		Items:         items,
		MaxGeocode:    opts.MaxGeocode,
		Concurrency:   opts.Concurrency,
		NoCache:       opts.NoCache,
		ForceProvider: opts.ForceProvider,
	})
	for j, rc := range resolved {
		if rc.Result == nil {
			continue
		}
		stats.Attempted++
		switch {
		case rc.Result.Strategy.IsProvider():
			stats.Resolved++
		case rc.Result.Strategy == domain.StrategyCentroid:
			stats.Approximate++
		default:
			stats.Failed++
		}
		i := indexes[j]
		out[i] = domain.ApplyGeocode(out[i], rc.Result)
	}
	return out, stats
}
