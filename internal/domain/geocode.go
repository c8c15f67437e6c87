package domain

import "strings"

// GeocodeQuery is the input to a single resolution. Area and Station only bias
// provider queries and pick a centroid; they never bypass provider lookup.
type GeocodeQuery struct {
	RawAddress string `json:"address"`
	Area       string `json:"area,omitempty"`
	Station    string `json:"station,omitempty"`
}

// GeocodeResult is the outcome of resolving one query. Lat and Lon are either
// both nil or both set.
type GeocodeResult struct {
	Lat              *float64 `json:"lat"`
	Lon              *float64 `json:"lon"`
	Approximate      bool     `json:"approximate"`
	Strategy         Strategy `json:"strategy"`
	Error            string   `json:"error,omitempty"`
	Query            string   `json:"query"`
	UserLocationHint string   `json:"userLocationHint,omitempty"`
	CentroidUsed     bool     `json:"centroidUsed"`
}

// HasCoordinates reports whether the result carries a coordinate pair.
func (r GeocodeResult) HasCoordinates() bool {
	return r.Lat != nil && r.Lon != nil
}

// Coordinates returns the pair when present.
func (r GeocodeResult) Coordinates() (Coordinates, bool) {
	if !r.HasCoordinates() {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *r.Lat, Lon: *r.Lon}, true
}

// Cacheable reports whether the result represents a stable fact worth
// memoizing. Centroid approximations and failures are retried every time.
func (r GeocodeResult) Cacheable() bool {
	return r.HasCoordinates() && r.Strategy.IsProvider() && !r.Approximate
}

// ProviderResult builds a successful exact result.
func ProviderResult(s Strategy, c Coordinates, query string) GeocodeResult {
	lat, lon := c.Lat, c.Lon
	return GeocodeResult{Lat: &lat, Lon: &lon, Strategy: s, Query: query}
}

// CentroidResult builds an approximate result from a regional centroid.
func CentroidResult(c Coordinates, query string) GeocodeResult {
	lat, lon := c.Lat, c.Lon
	return GeocodeResult{
		Lat:          &lat,
		Lon:          &lon,
		Approximate:  true,
		Strategy:     StrategyCentroid,
		Query:        query,
		CentroidUsed: true,
	}
}

// FailedResult builds a terminal failure with no coordinates.
func FailedResult(err error, query string) GeocodeResult {
	r := GeocodeResult{Strategy: StrategyNone, Query: query}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// CachedGeocode is the value stored in every cache tier.
type CachedGeocode struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	Approximate bool     `json:"approximate"`
	Strategy    Strategy `json:"strategy,omitempty"`
}

// Result rehydrates a cached value. Entries written before strategies were
// recorded come back as census, the historical default provider.
func (c CachedGeocode) Result(query string) GeocodeResult {
	s := c.Strategy
	if s == "" {
		s = StrategyCensus
	}
	r := ProviderResult(s, Coordinates{Lat: c.Lat, Lon: c.Lon}, query)
	r.Approximate = c.Approximate
	return r
}

// ToCached converts a cacheable result into its stored form.
func ToCached(r GeocodeResult) (CachedGeocode, bool) {
	c, ok := r.Coordinates()
	if !ok {
		return CachedGeocode{}, false
	}
	return CachedGeocode{Lat: c.Lat, Lon: c.Lon, Approximate: r.Approximate, Strategy: r.Strategy}, true
}

// CacheKey identifies the physical address being resolved. Station is left
// out on purpose: two incidents at the same address share one entry.
func CacheKey(q GeocodeQuery) string {
	return normalizeKeyPart(q.RawAddress) + "|" + normalizeKeyPart(q.Area)
}

func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
