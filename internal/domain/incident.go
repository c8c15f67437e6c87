package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidIncident is returned for records that cannot be normalized.
var ErrInvalidIncident = errors.New("invalid incident")

// RawIncident is the record as published by the upstream incident feed.
type RawIncident struct {
	IncidentNumber string `json:"incident_number"`
	Type           string `json:"type"`
	Address        string `json:"address"`
	Area           string `json:"area"`
	Station        string `json:"station"`
	Received       string `json:"received"`
}

// Incident is the normalized record. Geocode is nil when resolution was not
// attempted; Lat/Lon mirror Geocode's coordinates for map consumers.
type Incident struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Address    string         `json:"address"`
	Area       string         `json:"area,omitempty"`
	Station    string         `json:"station,omitempty"`
	ReceivedAt *time.Time     `json:"received_at,omitempty"`
	Lat        *float64       `json:"lat"`
	Lon        *float64       `json:"lon"`
	Geocode    *GeocodeResult `json:"geocode,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// Candidate is an incident whose address is eligible for geocoding.
type Candidate struct {
	ID         string `json:"id"`
	RawAddress string `json:"address"`
	Area       string `json:"area,omitempty"`
	Station    string `json:"station,omitempty"`
}

// Query converts the candidate into a resolver query.
func (c Candidate) Query() GeocodeQuery {
	return GeocodeQuery{RawAddress: c.RawAddress, Area: c.Area, Station: c.Station}
}

// receivedLayouts are the timestamp formats seen in the feed, most common first.
var receivedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
}

// ParseRawIncident decodes one feed record.
func ParseRawIncident(data []byte) (RawIncident, error) {
	var raw RawIncident
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawIncident{}, fmt.Errorf("parse raw incident: %w", err)
	}
	return raw, nil
}

// NormalizeIncident trims and canonicalizes a feed record. Areas are
// upper-cased and stations lower-cased to match the centroid table keys.
func NormalizeIncident(raw RawIncident) (Incident, error) {
	id := strings.TrimSpace(raw.IncidentNumber)
	if id == "" {
		return Incident{}, fmt.Errorf("%w: missing incident number", ErrInvalidIncident)
	}

	inc := Incident{
		ID:      id,
		Type:    strings.Join(strings.Fields(raw.Type), " "),
		Address: strings.Join(strings.Fields(raw.Address), " "),
		Area:    strings.ToUpper(strings.Join(strings.Fields(raw.Area), " ")),
		Station: strings.ToLower(strings.Join(strings.Fields(raw.Station), " ")),
	}
	if t, ok := parseReceived(raw.Received); ok {
		inc.ReceivedAt = &t
	}
	return inc, nil
}

func parseReceived(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range receivedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsCandidate reports whether the incident's address is worth geocoding.
// Exclusion happens here, before candidates reach the resolver.
func IsCandidate(inc Incident) bool {
	return RejectAddress(inc.Address) == nil
}

// Candidate projects the incident onto the fields the resolver needs.
func (inc Incident) Candidate() Candidate {
	return Candidate{ID: inc.ID, RawAddress: inc.Address, Area: inc.Area, Station: inc.Station}
}

// ApplyGeocode attaches a resolution result. A nil result leaves the incident
// untouched so it renders without a map pin.
func ApplyGeocode(inc Incident, res *GeocodeResult) Incident {
	if res == nil {
		return inc
	}
	r := *res
	inc.Geocode = &r
	inc.Lat, inc.Lon = r.Lat, r.Lon
	now := clock.Now().UTC()
	inc.ResolvedAt = &now
	return inc
}
