package apple

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/couchcryptid/incident-geocode-service/internal/observability"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const (
	assertionLifetime = 30 * time.Minute
	// Access tokens are refreshed this long before they expire.
	refreshSkew = 60 * time.Second
)

// TokenSource exchanges a signed ES256 assertion for a short-lived access
// token and caches it until shortly before expiry.
type TokenSource struct {
	teamID     string
	keyID      string
	key        *ecdsa.PrivateKey
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource parses the PEM-encoded P-256 key.
func NewTokenSource(teamID, keyID, privateKeyPEM string, timeout time.Duration, clock clockwork.Clock, metrics *observability.Metrics) (*TokenSource, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse apple private key: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenSource{
		teamID:     teamID,
		keyID:      keyID,
		key:        key,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clock,
		metrics:    metrics,
	}, nil
}

// Token returns a cached access token or exchanges for a new one. Concurrent
// callers share a single exchange.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.clock.Now().Before(s.expiresAt.Add(-refreshSkew)) {
		return s.token, nil
	}

	token, ttl, err := s.exchange(ctx)
	if err != nil {
		s.observe("error")
		return "", err
	}
	s.observe("success")
	s.token = token
	s.expiresAt = s.clock.Now().Add(ttl)
	return token, nil
}

// Invalidate drops the cached token so the next call exchanges again.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// assertion signs the JWT presented to the token endpoint.
func (s *TokenSource) assertion() (string, error) {
	now := s.clock.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    s.teamID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
	})
	tok.Header["kid"] = s.keyID
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signed, nil
}

func (s *TokenSource) exchange(ctx context.Context) (string, time.Duration, error) {
	assertion, err := s.assertion()
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/token", nil)
	if err != nil {
		return "", 0, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, fmt.Errorf("token exchange: status %d: %s", resp.StatusCode, body)
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" || out.ExpiresInSeconds <= 0 {
		return "", 0, fmt.Errorf("token exchange: empty access token")
	}
	return out.AccessToken, time.Duration(out.ExpiresInSeconds) * time.Second, nil
}

func (s *TokenSource) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenExchanges.WithLabelValues(outcome).Inc()
	}
}

type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}
