package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/geocode"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/couchcryptid/incident-geocode-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawMessage
	index   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockNormalizer struct {
	err error
}

func (m *mockNormalizer) Normalize(_ context.Context, raw domain.RawMessage) (domain.Incident, error) {
	if m.err != nil {
		return domain.Incident{}, m.err
	}
	return domain.Incident{ID: string(raw.Key), Address: string(raw.Value)}, nil
}

type mockEnricher struct {
	seen [][]domain.Incident
}

func (m *mockEnricher) Enrich(_ context.Context, incidents []domain.Incident) []domain.Incident {
	m.seen = append(m.seen, incidents)
	out := make([]domain.Incident, len(incidents))
	for i, inc := range incidents {
		inc.Geocode = &domain.GeocodeResult{Strategy: domain.StrategyNone}
		out[i] = inc
	}
	return out
}

type mockLoader struct {
	err    error
	loaded []domain.Incident
}

func (m *mockLoader) LoadBatch(_ context.Context, incidents []domain.Incident) error {
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, incidents...)
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raw := makeRawMessage("RVC001", "3900 MAIN ST")

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	enr := &mockEnricher{}
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockNormalizer{}, enr, ldr, discardLogger(), newTestMetrics(), 10)

	runFor(t, p, 300*time.Millisecond)

	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, "RVC001", ldr.loaded[0].ID)
	require.NotNil(t, ldr.loaded[0].Geocode, "loader must see enriched incidents")
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no batches, will block
	ldr := &mockLoader{}
	p := pipeline.New(ext, &mockNormalizer{}, &mockEnricher{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_NormalizeErrorSkipsAndCommits(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawMessage("RVC002", "not-json{{{")
	raw.Commit = func(context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	enr := &mockEnricher{}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(ext, &mockNormalizer{err: errors.New("bad data")}, enr, ldr, discardLogger(), metrics, 10)

	runFor(t, p, 300*time.Millisecond)

	assert.Empty(t, ldr.loaded)
	assert.Empty(t, enr.seen, "enricher is not called for an empty batch")
	assert.True(t, committed.Load(), "poison messages are committed so they are not redelivered")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TransformErrors), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int32
	batch := []domain.RawMessage{
		makeRawMessage("RVC003", "31000 TEMECULA PKWY"),
		makeRawMessage("RVC004", "25000 HANCOCK AVE"),
	}
	for i := range batch {
		batch[i].Topic = "raw-incidents"
		batch[i].Commit = func(context.Context) error {
			commits.Add(1)
			return nil
		}
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{batch}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(ext, &mockNormalizer{}, &mockEnricher{}, ldr, discardLogger(), metrics, 10)

	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, int32(2), commits.Load())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesProduced), 0)
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	var committed atomic.Bool
	raw := makeRawMessage("RVC005", "3900 MAIN ST")
	raw.Commit = func(context.Context) error {
		committed.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawMessage{{raw}}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}
	p := pipeline.New(ext, &mockNormalizer{}, &mockEnricher{}, ldr, discardLogger(), newTestMetrics(), 10)

	runFor(t, p, 300*time.Millisecond)

	assert.False(t, committed.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_EnrichesWholeBatchAtOnce(t *testing.T) {
	batch := []domain.RawMessage{
		makeRawMessage("A", "1"),
		makeRawMessage("B", "2"),
		makeRawMessage("C", "3"),
	}
	ext := &mockExtractor{batches: [][]domain.RawMessage{batch}}
	enr := &mockEnricher{}
	p := pipeline.New(ext, &mockNormalizer{}, enr, &mockLoader{}, discardLogger(), newTestMetrics(), 10)

	runFor(t, p, 300*time.Millisecond)

	require.Len(t, enr.seen, 1)
	require.Len(t, enr.seen[0], 3)
	assert.Equal(t, "A", enr.seen[0][0].ID)
	assert.Equal(t, "C", enr.seen[0][2].ID)
}

func TestIncidentNormalizer_Normalize(t *testing.T) {
	data, err := json.Marshal(domain.RawIncident{
		IncidentNumber: " RVC006 ",
		Type:           "Traffic  Collision",
		Address:        "I15 S / WINCHESTER RD",
		Area:           "temecula",
		Station:        "Southwest",
		Received:       "03/14/2026 08:03:40",
	})
	require.NoError(t, err)

	inc, err := pipeline.NewNormalizer().Normalize(context.Background(), domain.RawMessage{Value: data})
	require.NoError(t, err)
	assert.Equal(t, "RVC006", inc.ID)
	assert.Equal(t, "Traffic Collision", inc.Type)
	assert.Equal(t, "TEMECULA", inc.Area)
	assert.Equal(t, "southwest", inc.Station)
	require.NotNil(t, inc.ReceivedAt)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 3, 40, 0, time.UTC), *inc.ReceivedAt)
}

func TestIncidentNormalizer_Invalid(t *testing.T) {
	n := pipeline.NewNormalizer()

	_, err := n.Normalize(context.Background(), domain.RawMessage{Value: []byte("not json")})
	assert.Error(t, err)

	_, err = n.Normalize(context.Background(), domain.RawMessage{Value: []byte(`{"address":"3900 MAIN ST"}`)})
	assert.ErrorIs(t, err, domain.ErrInvalidIncident)
}

type recordingAnnotator struct {
	opts geocode.AnnotateOptions
}

func (a *recordingAnnotator) Annotate(_ context.Context, incidents []domain.Incident, opts geocode.AnnotateOptions) ([]domain.Incident, geocode.BatchStats) {
	a.opts = opts
	return incidents, geocode.BatchStats{Total: len(incidents)}
}

func TestGeocodeEnricher_UsesConfiguredKnobs(t *testing.T) {
	ann := &recordingAnnotator{}
	e := pipeline.NewGeocodeEnricher(ann, 100, 3, discardLogger())

	out := e.Enrich(context.Background(), []domain.Incident{{ID: "RVC007"}})

	require.Len(t, out, 1)
	assert.Equal(t, geocode.AnnotateOptions{MaxGeocode: 100, Concurrency: 3}, ann.opts)
}

func TestGeocodeEnricher_NilAnnotatorPassesThrough(t *testing.T) {
	e := pipeline.NewGeocodeEnricher(nil, 100, 3, discardLogger())
	in := []domain.Incident{{ID: "RVC008", Address: "3900 MAIN ST"}}

	out := e.Enrich(context.Background(), in)

	assert.Equal(t, in, out)
}

// --- helpers ---

func makeRawMessage(key, value string) domain.RawMessage {
	return domain.RawMessage{Key: []byte(key), Value: []byte(value)}
}
