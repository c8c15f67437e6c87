package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/geocode"
)

// maxBatchBody bounds POST /v1/geocode/batch request bodies.
const maxBatchBody = 4 << 20

// Annotator geocodes a batch of normalized incidents; *geocode.Orchestrator
// satisfies it.
type Annotator interface {
	Annotate(ctx context.Context, incidents []domain.Incident, opts geocode.AnnotateOptions) ([]domain.Incident, geocode.BatchStats)
	Defaults() (maxGeocode, concurrency int)
}

// Invalidator drops one cache key; *cache.Layered satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, key string)
}

// API serves the geocoding endpoints.
type API struct {
	resolver  geocode.SingleResolver
	annotator Annotator
	cache     Invalidator
	logger    *slog.Logger
}

// NewAPI wires the handlers. cache may be nil, in which case cache
// invalidation is a no-op.
func NewAPI(resolver geocode.SingleResolver, annotator Annotator, cache Invalidator, logger *slog.Logger) *API {
	return &API{resolver: resolver, annotator: annotator, cache: cache, logger: logger}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/geocode", a.handleGeocode)
	mux.HandleFunc("POST /v1/geocode/batch", a.handleBatch)
	mux.HandleFunc("DELETE /v1/geocode/cache", a.handleInvalidate)
}

func (a *API) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := q.Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	force, err := domain.ParseProvider(q.Get("forceProvider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	noCache, err := parseBoolParam(q.Get("noCache"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("noCache: %v", err))
		return
	}

	res := a.resolver.Resolve(r.Context(), domain.GeocodeQuery{
		RawAddress: address,
		Area:       q.Get("area"),
		Station:    q.Get("station"),
	}, geocode.ResolveOptions{NoCache: noCache, ForceProvider: force})
	writeJSON(w, http.StatusOK, res)
}

// batchRequest is the POST /v1/geocode/batch body. Pointer fields
// distinguish "omitted" from an explicit zero.
type batchRequest struct {
	Incidents          []domain.RawIncident `json:"incidents"`
	WithGeocode        *bool                `json:"withGeocode"`
	MaxGeocode         *int                 `json:"maxGeocode"`
	GeocodeConcurrency *int                 `json:"geocodeConcurrency"`
	NoCache            bool                 `json:"noCache"`
	ForceProvider      string               `json:"forceProvider"`
}

type batchResponse struct {
	Incidents []domain.Incident  `json:"incidents"`
	Stats     geocode.BatchStats `json:"stats"`
}

func (a *API) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
		return
	}
	force, err := domain.ParseProvider(req.ForceProvider)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	incidents := make([]domain.Incident, 0, len(req.Incidents))
	for i, raw := range req.Incidents {
		inc, err := domain.NormalizeIncident(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("incidents[%d]: %v", i, err))
			return
		}
		incidents = append(incidents, inc)
	}

	if req.WithGeocode != nil && !*req.WithGeocode {
		writeJSON(w, http.StatusOK, batchResponse{
			Incidents: incidents,
			Stats:     geocode.BatchStats{Total: len(incidents)},
		})
		return
	}

	maxGeocode, concurrency := a.annotator.Defaults()
	if req.MaxGeocode != nil {
		maxGeocode = *req.MaxGeocode
	}
	if req.GeocodeConcurrency != nil {
		concurrency = *req.GeocodeConcurrency
	}

	out, stats := a.annotator.Annotate(r.Context(), incidents, geocode.AnnotateOptions{
		MaxGeocode:    maxGeocode,
		Concurrency:   concurrency,
		NoCache:       req.NoCache,
		ForceProvider: force,
	})
	writeJSON(w, http.StatusOK, batchResponse{Incidents: out, Stats: stats})
}

func (a *API) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := q.Get("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	key := domain.CacheKey(domain.GeocodeQuery{RawAddress: address, Area: q.Get("area")})
	if a.cache != nil {
		a.cache.Invalidate(r.Context(), key)
	}
	a.logger.Info("geocode cache entry invalidated", "key", key)
	w.WriteHeader(http.StatusNoContent)
}

func parseBoolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
