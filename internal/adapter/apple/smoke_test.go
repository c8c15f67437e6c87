//go:build smoke

package apple

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Apple Maps Server API and require APPLE_TEAM_ID,
// APPLE_KEY_ID and APPLE_PRIVATE_KEY.
// Run with: go test -tags=smoke ./internal/adapter/apple/ -v -count=1

func TestSmoke_Resolve(t *testing.T) {
	teamID, keyID, keyPEM := os.Getenv("APPLE_TEAM_ID"), os.Getenv("APPLE_KEY_ID"), os.Getenv("APPLE_PRIVATE_KEY")
	if teamID == "" || keyID == "" || keyPEM == "" {
		t.Fatal("APPLE_TEAM_ID, APPLE_KEY_ID and APPLE_PRIVATE_KEY must be set to run smoke tests")
	}
	tokens, err := NewTokenSource(teamID, keyID, keyPEM, 5*time.Second, nil, observability.NewMetricsForTesting())
	require.NoError(t, err)
	c := NewClient(tokens, 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	hint := domain.Coordinates{Lat: 33.5316, Lon: -117.1686}
	m, err := c.Resolve(context.Background(), domain.ProviderQuery{
		Address:      "41000 Main St",
		Area:         "TEMECULA",
		UserLocation: &hint,
	})
	require.NoError(t, err)
	assert.InDelta(t, 33.49, m.Lat, 0.05)
	assert.InDelta(t, -117.15, m.Lon, 0.05)
}
