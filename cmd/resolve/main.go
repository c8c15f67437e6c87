// Command resolve geocodes addresses from stdin through the same provider
// chain and cache tiers as the service, printing one JSON result per line.
// Provider and cache settings come from the usual environment variables.
//
// Input lines are either raw incident JSON objects or "address|area|station"
// triples (area and station optional).
//
// Usage:
//
//	echo '4100 *** BLOCK COUNTY CENTER DR|TEMECULA|southwest' | go run ./cmd/resolve
//	go run ./cmd/resolve -batch -max 50 < incidents.jsonl
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/couchcryptid/incident-geocode-service/internal/app"
	"github.com/couchcryptid/incident-geocode-service/internal/config"
	"github.com/couchcryptid/incident-geocode-service/internal/domain"
	"github.com/couchcryptid/incident-geocode-service/internal/geocode"
	"github.com/couchcryptid/incident-geocode-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	noCache := flag.Bool("no-cache", false, "bypass cache reads and writes")
	force := flag.String("force", "", "only try this provider (apple, census, nominatim)")
	batch := flag.Bool("batch", false, "annotate all input as one batch instead of resolving line by line")
	maxGeocode := flag.Int("max", -1, "batch mode: max candidates to geocode (default from config)")
	concurrency := flag.Int("concurrency", -1, "batch mode: worker count (default from config)")
	verbose := flag.Bool("v", false, "log provider and cache activity to stderr")
	flag.Parse()

	forced, err := domain.ParseProvider(*force)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stack, err := app.Build(ctx, cfg, logger, observability.NewMetricsForTesting())
	if err != nil {
		return err
	}
	defer func() {
		stack.Wait()
		_ = stack.Close()
	}()

	incidents, err := readInput(os.Stdin)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if !*batch {
		opts := geocode.ResolveOptions{NoCache: *noCache, ForceProvider: forced}
		for _, inc := range incidents {
			res := stack.Resolver.Resolve(ctx, inc.Candidate().Query(), opts)
			if err := enc.Encode(res); err != nil {
				return err
			}
		}
		return nil
	}

	m, c := stack.Orchestrator.Defaults()
	if *maxGeocode >= 0 {
		m = *maxGeocode
	}
	if *concurrency >= 0 {
		c = *concurrency
	}
	out, stats := stack.Orchestrator.Annotate(ctx, incidents, geocode.AnnotateOptions{
		MaxGeocode:    m,
		Concurrency:   c,
		NoCache:       *noCache,
		ForceProvider: forced,
	})
	for _, inc := range out {
		if err := enc.Encode(inc); err != nil {
			return err
		}
	}
	log.Printf("total=%d candidates=%d attempted=%d resolved=%d approximate=%d failed=%d",
		stats.Total, stats.Candidates, stats.Attempted, stats.Resolved, stats.Approximate, stats.Failed)
	return nil
}

// readInput parses stdin into incidents. Pipe-delimited lines get a
// synthetic id from their line number.
func readInput(r io.Reader) ([]domain.Incident, error) {
	var incidents []domain.Incident
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		inc, err := parseLine(line, n)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		incidents = append(incidents, inc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return incidents, nil
}

func parseLine(line string, n int) (domain.Incident, error) {
	if strings.HasPrefix(line, "{") {
		raw, err := domain.ParseRawIncident([]byte(line))
		if err != nil {
			return domain.Incident{}, err
		}
		return domain.NormalizeIncident(raw)
	}
	parts := strings.SplitN(line, "|", 3)
	raw := domain.RawIncident{IncidentNumber: fmt.Sprintf("line-%d", n), Address: parts[0]}
	if len(parts) > 1 {
		raw.Area = parts[1]
	}
	if len(parts) > 2 {
		raw.Station = parts[2]
	}
	return domain.NormalizeIncident(raw)
}
