package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Strategy records which mechanism produced (or failed to produce) a result.
type Strategy string

const (
	StrategyApple     Strategy = "apple"
	StrategyCensus    Strategy = "census"
	StrategyNominatim Strategy = "nominatim"
	StrategyCentroid  Strategy = "centroid"
	StrategyNone      Strategy = "none"
)

// IsProvider reports whether s names a third-party provider rather than a fallback.
func (s Strategy) IsProvider() bool {
	switch s {
	case StrategyApple, StrategyCensus, StrategyNominatim:
		return true
	}
	return false
}

// ParseProvider parses a forceProvider value. The empty string means "no
// forced provider" and is returned as-is.
func ParseProvider(s string) (Strategy, error) {
	p := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if p == "" || p.IsProvider() {
		return p, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Error taxonomy for the resolution pipeline. Only ErrInputRejected and
// ErrNoCentroid are terminal for a candidate; the rest advance the chain.
var (
	ErrInputRejected      = errors.New("address rejected")
	ErrNoMatch            = errors.New("no match")
	ErrProviderFailed     = errors.New("provider failed")
	ErrAllProvidersFailed = errors.New("all providers failed")
	ErrNoCentroid         = errors.New("no centroid available")
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the pair as "lat,lon", the form providers accept as a bias hint.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 6, 64)
}

// ProviderQuery is what a provider receives. Each provider shapes its own
// query string from these parts.
type ProviderQuery struct {
	Address      string // cleaned street address, redaction markers removed
	Area         string
	UserLocation *Coordinates
}

// Match is a provider's answer. Query is the exact string sent upstream and
// is populated even when an error is returned.
type Match struct {
	Coordinates
	Query string
}

// Provider resolves one address against a single third-party geocoder.
type Provider interface {
	Name() Strategy

	// Resolve returns ErrNoMatch (wrapped) when the provider answered but had
	// no usable coordinate, and ErrProviderFailed (wrapped) on transport,
	// status, or decode failures.
	Resolve(ctx context.Context, q ProviderQuery) (Match, error)
}

// Valid reports whether c is a finite, in-range pair. The null island (0,0)
// is treated as invalid since providers use it as an empty placeholder.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	return c.Lat != 0 || c.Lon != 0
}

// JoinQuery joins the non-empty parts with ", ", the shape every provider
// expects for a one-line address.
func JoinQuery(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
