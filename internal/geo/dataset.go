// Package geo resolves the geography references carried by raw records
// (admin-unit lists, country names, bare points) against an administrative
// boundary dataset and produces GeoJSON geometry plus bounding box.
//
// The dataset is a GeoJSON FeatureCollection whose features carry GAUL-style
// attributes: ADM0_CODE and ADM0_NAME always, ADM1_CODE and ADM2_CODE on
// sub-national features, and optionally ISO3. Boundary datasets ship zipped;
// a .zip path is read transparently without unpacking to disk.
package geo

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
)

// loadFeatureCollection reads a GeoJSON FeatureCollection from path. When
// path ends in .zip the first archive member with a .geojson or .json
// extension is read instead; the archive never touches disk unpacked.
func loadFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := readBoundaryFile(path)
	if err != nil {
		return nil, &domain.DataSourceUnavailableError{Path: path, Err: err}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &domain.DataSourceUnavailableError{
			Path: path,
			Err:  fmt.Errorf("parse feature collection: %w", err),
		}
	}
	if len(fc.Features) == 0 {
		return nil, &domain.DataSourceUnavailableError{
			Path: path,
			Err:  fmt.Errorf("feature collection is empty"),
		}
	}
	return fc, nil
}

func readBoundaryFile(path string) ([]byte, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return os.ReadFile(path)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open boundary archive: %w", err)
	}
	defer zr.Close()

	for _, member := range zr.File {
		ext := strings.ToLower(filepath.Ext(member.Name))
		if ext != ".geojson" && ext != ".json" {
			continue
		}
		f, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive member %s: %w", member.Name, err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return nil, fmt.Errorf("no geojson member in archive")
}
