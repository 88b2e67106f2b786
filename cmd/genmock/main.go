// Command genmock generates mock fixtures for local development and test
// runs: a GAUL-shaped boundary dataset (loose GeoJSON plus a zipped copy)
// and a raw record feed covering every hazard coding scheme. It resolves the
// feed through the actual domain packages and prints the outcomes, so test
// assertions can be updated from real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock
package main

import (
	"archive/zip"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
	"github.com/gcdb-labs/disaster-etl/internal/taxonomy"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "output directory for mock fixtures")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Fixed clock for reproducible processed_at stamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	boundaryPath := filepath.Join(*outDir, "boundaries.geojson")
	if err := writeBoundaryDataset(boundaryPath); err != nil {
		return fmt.Errorf("writing boundary dataset: %w", err)
	}
	log.Printf("wrote boundary dataset: %s", boundaryPath)

	zipPath := filepath.Join(*outDir, "boundaries.zip")
	if err := zipFile(boundaryPath, zipPath); err != nil {
		return fmt.Errorf("zipping boundary dataset: %w", err)
	}
	log.Printf("wrote zipped boundary dataset: %s", zipPath)

	records := mockRecords()
	recordsPath := filepath.Join(*outDir, "raw_records.json")
	if err := writeJSON(recordsPath, records); err != nil {
		return fmt.Errorf("writing raw records: %w", err)
	}
	log.Printf("wrote %d raw records: %s", len(records), recordsPath)

	printResolutions(records)
	return nil
}

// writeBoundaryDataset emits a small two-country admin boundary set: Nepal
// with two level-1 units and one level-2 unit, plus India.
func writeBoundaryDataset(path string) error {
	rect := func(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
		return orb.Polygon{{
			{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
		}}
	}
	feature := func(geom orb.Geometry, props map[string]any) *geojson.Feature {
		f := geojson.NewFeature(geom)
		f.Properties = props
		return f
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(feature(rect(80, 26, 88, 30), map[string]any{
		"ADM0_CODE": 175, "ADM0_NAME": "Nepal", "ISO3": "NPL",
	}))
	fc.Append(feature(rect(84, 27, 86, 29), map[string]any{
		"ADM0_CODE": 175, "ADM0_NAME": "Nepal", "ADM1_CODE": 2801,
	}))
	fc.Append(feature(rect(82, 27, 84, 29), map[string]any{
		"ADM0_CODE": 175, "ADM0_NAME": "Nepal", "ADM1_CODE": 2802,
	}))
	fc.Append(feature(rect(85, 27.5, 85.5, 28), map[string]any{
		"ADM0_CODE": 175, "ADM0_NAME": "Nepal", "ADM1_CODE": 2801, "ADM2_CODE": 41101,
	}))
	fc.Append(feature(rect(68, 8, 88, 26), map[string]any{
		"ADM0_CODE": 115, "ADM0_NAME": "India", "ISO3": "IND",
	}))

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func zipFile(srcPath, zipPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}

	f, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(filepath.Base(srcPath))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return zw.Close()
}

// mockRecords covers every coding scheme, the geography reference fallback
// chain, and one deliberately incomplete record for failure-path tests.
func mockRecords() []domain.RawRecord {
	return []domain.RawRecord{
		{
			Source:        "emdat",
			SourceID:      "2024-0123-NPL",
			Title:         "Koshi river flooding",
			HazardCodes:   []string{"MH0007", "FL"},
			CountryCodes:  []string{"NPL"},
			EventDatetime: "2024-03-15T06:30:00Z",
			EpisodeNumber: 1,
			AdminUnits:    json.RawMessage(`[{"adm1_code": 2801}]`),
		},
		{
			Source:        "gdacs",
			SourceID:      "FL-2024-000032",
			Title:         "Koshi river flooding, second wave",
			HazardCodes:   []string{"FL", "MH0007"},
			CountryCodes:  []string{"NPL"},
			EventDatetime: "2024-03-22T00:00:00Z",
			EpisodeNumber: 2,
			CountryName:   "Nepal",
		},
		{
			Source:        "emdat",
			SourceID:      "2024-0200-IND",
			Title:         "Pre-monsoon heat wave",
			HazardCodes:   []string{"MH0036", "HT"},
			CountryCodes:  []string{"IND"},
			EventDatetime: "2024-05-20T00:00:00Z",
			EpisodeNumber: 1,
			Point:         []float64{77, 20},
		},
		{
			Source:        "usgs",
			SourceID:      "us7000abcd",
			Title:         "M 6.4 earthquake",
			HazardCodes:   []string{"GH0001"},
			CountryCodes:  []string{"TUR"},
			EventDatetime: "2024-02-06T01:17:00Z",
			EpisodeNumber: 1,
		},
		{
			Source:        "glide",
			SourceID:      "DR-2024-000051-ETH",
			Title:         "Rift valley drought",
			HazardCodes:   []string{"DR"},
			CountryCodes:  []string{"ETH"},
			EventDatetime: "2024-01-01T00:00:00Z",
			EpisodeNumber: 1,
		},
		{
			// Incomplete on purpose: no country codes, no event time.
			Source:      "gdacs",
			SourceID:    "TC-2024-000099",
			Title:       "Unnamed tropical cyclone",
			HazardCodes: []string{"TC"},
		},
	}
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

func printResolutions(records []domain.RawRecord) {
	resolver := taxonomy.NewResolver(taxonomy.NewTable(), slog.Default())

	fmt.Println("\n=== Stats for updating test assertions ===")
	for _, rec := range records {
		cluster, err := resolver.ResolveClusterCode(rec.HazardCodes)
		if err != nil {
			fmt.Printf("%s/%s: cluster error: %v\n", rec.Source, rec.SourceID, err)
			continue
		}

		id, err := domain.GenerateCorrelationID(resolver, rec.HazardCodes, rec.CountryCodes, rec.EventTime(), rec.EpisodeNumber)
		if err != nil {
			fmt.Printf("%s/%s: cluster=%s correlation error: %v\n", rec.Source, rec.SourceID, cluster, err)
			continue
		}
		fmt.Printf("%s/%s: cluster=%s correlation=%s\n", rec.Source, rec.SourceID, cluster, id)
	}
}
