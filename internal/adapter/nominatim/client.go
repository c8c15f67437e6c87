// Package nominatim resolves addresses with an OpenStreetMap Nominatim
// search endpoint.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org/search"

// Client implements domain.Provider against Nominatim's /search endpoint.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	userAgent    string
	jurisdiction string
	limiter      *rate.Limiter // nil means unlimited
	logger       *slog.Logger
}

// NewClient creates a Nominatim client. The public instance requires an
// identifying User-Agent. A maxRPS of zero disables client-side limiting.
func NewClient(timeout time.Duration, userAgent, jurisdiction string, maxRPS float64, logger *slog.Logger) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      defaultBaseURL,
		userAgent:    userAgent,
		jurisdiction: jurisdiction,
		logger:       logger,
	}
	if maxRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(maxRPS), 1)
	}
	return c
}

func (c *Client) Name() domain.Strategy { return domain.StrategyNominatim }

// Resolve returns the top search hit.
func (c *Client) Resolve(ctx context.Context, q domain.ProviderQuery) (domain.Match, error) {
	query := domain.JoinQuery(q.Address, q.Area, c.jurisdiction)
	match := domain.Match{Query: query}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return match, fmt.Errorf("%w: nominatim rate limit: %w", domain.ErrProviderFailed, err)
		}
	}

	params := url.Values{
		"q":            {query},
		"format":       {"jsonv2"},
		"limit":        {"1"},
		"countrycodes": {"us"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return match, fmt.Errorf("%w: nominatim create request: %w", domain.ErrProviderFailed, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return match, fmt.Errorf("%w: nominatim request: %w", domain.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return match, fmt.Errorf("%w: nominatim status %d: %s", domain.ErrProviderFailed, resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return match, fmt.Errorf("%w: nominatim decode response: %w", domain.ErrProviderFailed, err)
	}
	if len(places) == 0 {
		return match, fmt.Errorf("nominatim: %w", domain.ErrNoMatch)
	}

	// Nominatim encodes coordinates as strings.
	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lon, errLon := strconv.ParseFloat(places[0].Lon, 64)
	if errLat != nil || errLon != nil {
		return match, fmt.Errorf("%w: nominatim coordinates %q,%q", domain.ErrProviderFailed, places[0].Lat, places[0].Lon)
	}
	coords := domain.Coordinates{Lat: lat, Lon: lon}
	if !coords.Valid() {
		return match, fmt.Errorf("nominatim: %w", domain.ErrNoMatch)
	}

	match.Coordinates = coords
	c.logger.Debug("nominatim match", "query", query, "display_name", places[0].DisplayName)
	return match, nil
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
