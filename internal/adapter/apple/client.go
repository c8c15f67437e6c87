// Package apple resolves addresses with the Apple Maps Server API. Requests
// are authorized with an access token obtained from a signed assertion.
package apple

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
	defaultBaseURL = "https://maps-api.apple.com"
	// Incidents are all in-state; Apple gets a state suffix instead of the
	// county jurisdiction and relies on the location hint for locality.
	stateSuffix = "CA"
)

// Client implements domain.Provider against the Apple geocode endpoint.
type Client struct {
	tokens     *TokenSource
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a client that authorizes through tokens.
func NewClient(tokens *TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		logger:     logger,
	}
}

func (c *Client) Name() domain.Strategy { return domain.StrategyApple }

// Resolve returns the first result, biased toward q.UserLocation when set.
func (c *Client) Resolve(ctx context.Context, q domain.ProviderQuery) (domain.Match, error) {
	query := domain.JoinQuery(q.Address, q.Area, stateSuffix)
	match := domain.Match{Query: query}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return match, fmt.Errorf("%w: apple %w", domain.ErrProviderFailed, err)
	}

	params := url.Values{
		"q":                {query},
		"limitToCountries": {"US"},
	}
	if q.UserLocation != nil {
		params.Set("userLocation", q.UserLocation.String())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/geocode?"+params.Encode(), nil)
	if err != nil {
		return match, fmt.Errorf("%w: apple create request: %w", domain.ErrProviderFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return match, fmt.Errorf("%w: apple request: %w", domain.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return match, fmt.Errorf("%w: apple status %d: %s", domain.ErrProviderFailed, resp.StatusCode, body)
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return match, fmt.Errorf("%w: apple decode response: %w", domain.ErrProviderFailed, err)
	}
	for _, r := range out.Results {
		coords := domain.Coordinates{Lat: r.Coordinate.Latitude, Lon: r.Coordinate.Longitude}
		if coords.Valid() {
			match.Coordinates = coords
			return match, nil
		}
	}
	return match, fmt.Errorf("apple: %w", domain.ErrNoMatch)
}

// Apple Maps Server API response types.

type geocodeResponse struct {
	Results []place `json:"results"`
}

type place struct {
	Coordinate struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinate"`
	FormattedAddressLines []string `json:"formattedAddressLines"`
}
