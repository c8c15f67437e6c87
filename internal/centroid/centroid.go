// Package centroid holds approximate regional coordinates used when no
// provider can resolve an address, and as the location bias hint sent to the
// premium provider.
package centroid

import (
	"strings"

	"github.com/couchcryptid/incident-geocode-service/internal/domain"
)

// Level names the granularity of a centroid match.
type Level string

const (
	LevelStation Level = "station"
	LevelArea    Level = "area"
	LevelCounty  Level = "county"
)

// Table maps station and area codes to approximate coordinates.
type Table struct {
	stations map[string]domain.Coordinates
	areas    map[string]domain.Coordinates
	county   *domain.Coordinates
}

// New builds a table. Keys are matched case-insensitively; a nil county
// disables the last-resort default.
func New(stations, areas map[string]domain.Coordinates, county *domain.Coordinates) *Table {
	t := &Table{
		stations: make(map[string]domain.Coordinates, len(stations)),
		areas:    make(map[string]domain.Coordinates, len(areas)),
		county:   county,
	}
	for k, v := range stations {
		t.stations[normalize(k)] = v
	}
	for k, v := range areas {
		t.areas[normalize(k)] = v
	}
	return t
}

// Default returns the Riverside County table.
func Default() *Table {
	county := riversideCounty
	return New(riversideStations, riversideAreas, &county)
}

// Lookup resolves station first, then area, then the county default.
func (t *Table) Lookup(station, area string) (domain.Coordinates, Level, bool) {
	if t == nil {
		return domain.Coordinates{}, "", false
	}
	if c, ok := t.stations[normalize(station)]; ok && station != "" {
		return c, LevelStation, true
	}
	if c, ok := t.areas[normalize(area)]; ok && area != "" {
		return c, LevelArea, true
	}
	if t.county != nil {
		return *t.county, LevelCounty, true
	}
	return domain.Coordinates{}, "", false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
