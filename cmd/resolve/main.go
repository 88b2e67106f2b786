// Command resolve runs the classification and correlation stages against a
// JSON file of raw records, without Kafka. It is the offline companion to
// the ETL service: backfills, dataset upgrades, and spot checks all use the
// same domain packages as the pipeline, so output here matches pipeline
// behavior exactly.
//
// Usage:
//
//	go run ./cmd/resolve \
//	  -in data/mock/raw_records.json \
//	  -out data/mock/resolved_records.json \
//	  -boundary data/gaul/boundaries.zip
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
	"github.com/gcdb-labs/disaster-etl/internal/geo"
	"github.com/gcdb-labs/disaster-etl/internal/observability"
	"github.com/gcdb-labs/disaster-etl/internal/pipeline"
	"github.com/gcdb-labs/disaster-etl/internal/taxonomy"
)

func main() {
	in := flag.String("in", "", "path to raw records JSON file")
	out := flag.String("out", "", "output path for resolved records JSON")
	boundary := flag.String("boundary", "", "optional boundary dataset (geojson or zip) for geometry resolution")
	taxonomyPath := flag.String("taxonomy", "", "optional hazard profile CSV overriding the embedded dataset")
	fixedTime := flag.String("fixed-time", "", "optional RFC3339 instant to stamp processed_at with, for reproducible fixtures")
	flag.Parse()

	if *in == "" || *out == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*in, *out, *boundary, *taxonomyPath, *fixedTime); code != 0 {
		os.Exit(code)
	}
}

func run(inPath, outPath, boundaryPath, taxonomyPath, fixedTime string) int {
	logger := observability.NewLogger("warn", "text")

	if fixedTime != "" {
		at, err := time.Parse(time.RFC3339, fixedTime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: parse -fixed-time: %v\n", err)
			return 1
		}
		domain.SetClock(clockwork.NewFakeClockAt(at))
		defer domain.SetClock(nil)
	}

	table := taxonomy.NewTable()
	if taxonomyPath != "" {
		table = taxonomy.NewTableFromPath(taxonomyPath)
	}
	resolver := taxonomy.NewResolver(table, logger)

	var geocoder domain.Geocoder
	if boundaryPath != "" {
		g, err := geo.NewResolver(boundaryPath, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load boundary dataset: %v\n", err)
			return 1
		}
		geocoder = g
	}

	records, err := loadRecords(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw records: %v\n", err)
		return 1
	}

	transformer := pipeline.NewTransformer(resolver, geocoder, logger, observability.NewMetricsForTesting())

	resolved, failures := resolveAll(transformer, records)

	if err := writeJSON(outPath, resolved); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: write output: %v\n", err)
		return 1
	}

	printReport(resolved, failures)
	if len(failures) > 0 {
		return 2
	}
	return 0
}

type failure struct {
	index int
	err   error
}

func resolveAll(transformer *pipeline.RecordTransformer, records []domain.RawRecord) ([]domain.ResolvedRecord, []failure) {
	ctx := context.Background()
	resolved := make([]domain.ResolvedRecord, 0, len(records))
	var failures []failure

	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			failures = append(failures, failure{index: i, err: err})
			continue
		}
		out, err := transformer.Transform(ctx, domain.RawEvent{Value: payload})
		if err != nil {
			failures = append(failures, failure{index: i, err: err})
			continue
		}
		resolved = append(resolved, out)
	}
	return resolved, failures
}

func printReport(resolved []domain.ResolvedRecord, failures []failure) {
	fmt.Println("=== Offline Resolution Report ===")
	fmt.Printf("Resolved: %d\n", len(resolved))
	fmt.Printf("Failed:   %d\n", len(failures))

	clusterCounts := map[string]int{}
	geoCounts := map[string]int{}
	for i := range resolved {
		clusterCounts[resolved[i].HazardCluster]++
		geoCounts[resolved[i].GeoSource]++
	}

	fmt.Println("\nBy cluster:")
	for cluster, n := range clusterCounts {
		fmt.Printf("  %s: %d\n", cluster, n)
	}
	fmt.Println("\nBy geography source:")
	for source, n := range geoCounts {
		fmt.Printf("  %s: %d\n", source, n)
	}

	if len(failures) > 0 {
		fmt.Println("\nFailures:")
		for _, f := range failures {
			fmt.Printf("  record %d: %v\n", f.index, f.err)
		}
	}
}

func loadRecords(path string) ([]domain.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []domain.RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
