// Package census resolves addresses with the US Census Bureau one-line
// geocoder.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
)

const (
	defaultBaseURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	benchmark      = "Public_AR_Current"
)

// Client implements domain.Provider against the Census one-line API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	jurisdiction string
	logger       *slog.Logger
}

// NewClient creates a Census client. jurisdiction is appended to every query,
// e.g. "Riverside County, CA".
func NewClient(timeout time.Duration, jurisdiction string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      defaultBaseURL,
		jurisdiction: jurisdiction,
		logger:       logger,
	}
}

func (c *Client) Name() domain.Strategy { return domain.StrategyCensus }

// Resolve returns the first address match.
func (c *Client) Resolve(ctx context.Context, q domain.ProviderQuery) (domain.Match, error) {
	query := domain.JoinQuery(q.Address, q.Area, c.jurisdiction)
	match := domain.Match{Query: query}

	params := url.Values{
		"address":   {query},
		"benchmark": {benchmark},
		"format":    {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return match, fmt.Errorf("%w: census create request: %w", domain.ErrProviderFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return match, fmt.Errorf("%w: census request: %w", domain.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return match, fmt.Errorf("%w: census status %d: %s", domain.ErrProviderFailed, resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return match, fmt.Errorf("%w: census decode response: %w", domain.ErrProviderFailed, err)
	}

	for _, m := range out.Result.AddressMatches {
		coords := domain.Coordinates{Lat: m.Coordinates.Y, Lon: m.Coordinates.X}
		if coords.Valid() {
			match.Coordinates = coords
			c.logger.Debug("census match", "query", query, "matched", m.MatchedAddress)
			return match, nil
		}
	}
	return match, fmt.Errorf("census: %w", domain.ErrNoMatch)
}

// Census API response types.

type response struct {
	Result struct {
		AddressMatches []addressMatch `json:"addressMatches"`
	} `json:"result"`
}

type addressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}
