// Command validate checks incident fixtures and geocoded output for
// integrity: every feed record normalizes, ids are unique, candidate
// selection is explainable, every candidate area has a centroid, and
// geocoded incidents satisfy the result invariants.
//
// Usage:
//
//	go run ./cmd/validate -feed data/mock/incidents.json
//	go run ./cmd/validate -feed data/mock/incidents.json -geocoded out.json
//
// The -geocoded file is either a JSON array of incidents or the response
// body of POST /v1/geocode/batch.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/incident-geocode-service/internal/centroid"
	"github.com/couchcryptid/incident-geocode-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a JSON array of raw feed incidents")
	geocodedPath := flag.String("geocoded", "", "optional path to geocoded incidents to check")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*feedPath, *geocodedPath); code != 0 {
		os.Exit(code)
	}
}

func run(feedPath, geocodedPath string) int {
	fmt.Println("=== Incident Fixture Validation ===")
	fmt.Println()

	raws, err := loadJSON[domain.RawIncident](feedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load feed: %v\n", err)
		return 1
	}

	var geocoded []domain.Incident
	if geocodedPath != "" {
		geocoded, err = loadGeocoded(geocodedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load geocoded output: %v\n", err)
			return 1
		}
	}

	incidents, normPhase := validateNormalization(raws)
	phases := []*phase{
		normPhase,
		validateCandidates(incidents),
		validateCentroidCoverage(incidents, centroid.Default()),
	}
	if geocodedPath != "" {
		phases = append(phases, validateGeocoded(geocoded, incidents))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	candidates := 0
	for _, inc := range incidents {
		if domain.IsCandidate(inc) {
			candidates++
		}
	}
	fmt.Println()
	fmt.Printf("Records: %d feed, %d normalized, %d candidates, %d geocoded\n",
		len(raws), len(incidents), candidates, len(geocoded))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}

func loadGeocoded(path string) ([]domain.Incident, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var incidents []domain.Incident
	if err := json.Unmarshal(data, &incidents); err == nil {
		return incidents, nil
	}
	var body struct {
		Incidents []domain.Incident `json:"incidents"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return body.Incidents, nil
}

// validateNormalization normalizes every feed record and checks ids are unique.
func validateNormalization(raws []domain.RawIncident) ([]domain.Incident, *phase) {
	p := &phase{name: "Feed normalization"}
	seen := make(map[string]int, len(raws))
	incidents := make([]domain.Incident, 0, len(raws))
	for i, raw := range raws {
		inc, err := domain.NormalizeIncident(raw)
		if err != nil {
			p.errorf("record %d: %v", i, err)
			continue
		}
		if prev, ok := seen[inc.ID]; ok {
			p.errorf("record %d: duplicate id %s (first at %d)", i, inc.ID, prev)
		}
		seen[inc.ID] = i
		if raw.Received != "" && inc.ReceivedAt == nil {
			p.errorf("%s: unparseable received time %q", inc.ID, raw.Received)
		}
		incidents = append(incidents, inc)
	}
	return incidents, p
}

// validateCandidates checks that candidate selection agrees with the cleaner:
// a candidate always keeps a street name once redaction markers are removed.
func validateCandidates(incidents []domain.Incident) *phase {
	p := &phase{name: "Candidate selection"}
	for _, inc := range incidents {
		if !domain.IsCandidate(inc) {
			continue
		}
		cleaned := domain.CleanAddress(inc.Address)
		if len(cleaned) < domain.MinAddressLength {
			p.errorf("%s: candidate %q cleans to %q", inc.ID, inc.Address, cleaned)
		}
	}
	return p
}

// validateCentroidCoverage reports candidates whose station and area have no
// specific centroid, which would fall back to the county default.
func validateCentroidCoverage(incidents []domain.Incident, table *centroid.Table) *phase {
	p := &phase{name: "Centroid coverage"}
	for _, inc := range incidents {
		if !domain.IsCandidate(inc) || inc.Area == "" {
			continue
		}
		_, level, ok := table.Lookup(inc.Station, inc.Area)
		if !ok {
			p.errorf("%s: no centroid for station=%q area=%q", inc.ID, inc.Station, inc.Area)
			continue
		}
		if level == centroid.LevelCounty {
			p.errorf("%s: area %q only resolves to the county centroid", inc.ID, inc.Area)
		}
	}
	return p
}

// validateGeocoded checks result invariants on geocoded output and that it
// lines up with the feed in order.
func validateGeocoded(geocoded, feed []domain.Incident) *phase {
	p := &phase{name: "Geocoded output invariants"}
	if len(geocoded) != len(feed) {
		p.errorf("length mismatch: %d geocoded vs %d feed", len(geocoded), len(feed))
	}
	for i, inc := range geocoded {
		if i < len(feed) && inc.ID != feed[i].ID {
			p.errorf("position %d: id %s, feed has %s", i, inc.ID, feed[i].ID)
		}
		if inc.Geocode == nil {
			if inc.Lat != nil || inc.Lon != nil {
				p.errorf("%s: coordinates without a geocode result", inc.ID)
			}
			continue
		}
		if !domain.IsCandidate(inc) {
			p.errorf("%s: non-candidate address %q was geocoded", inc.ID, inc.Address)
		}
		checkResult(p, inc.ID, inc.Geocode)
	}
	return p
}

func checkResult(p *phase, id string, r *domain.GeocodeResult) {
	if (r.Lat == nil) != (r.Lon == nil) {
		p.errorf("%s: lat and lon must be both set or both null", id)
	}
	if c, ok := r.Coordinates(); ok && !c.Valid() {
		p.errorf("%s: invalid coordinates %s", id, c)
	}
	switch {
	case r.Strategy == domain.StrategyCentroid:
		if !r.Approximate || !r.HasCoordinates() {
			p.errorf("%s: centroid result must be approximate with coordinates", id)
		}
	case r.Strategy.IsProvider():
		if !r.HasCoordinates() {
			p.errorf("%s: %s result has no coordinates", id, r.Strategy)
		}
	case r.Strategy == domain.StrategyNone:
		if r.HasCoordinates() {
			p.errorf("%s: failed result carries coordinates", id)
		}
		if r.Error == "" {
			p.errorf("%s: failed result has no error", id)
		}
	default:
		p.errorf("%s: unknown strategy %q", id, r.Strategy)
	}
}
