package geo

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
)

// testDataset is a tiny GAUL-shaped boundary set: Nepal with two level-1
// units and one level-2 unit, plus India as a second country.
func testDataset(t *testing.T) []byte {
	t.Helper()

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
	require.NoError(t, err)
	return data
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	path := filepath.Join(t.TempDir(), "boundaries.geojson")
	require.NoError(t, os.WriteFile(path, testDataset(t), 0o644))

	r, err := NewResolver(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return r
}

func TestNewResolverMissingDatasetIsFatal(t *testing.T) {
	_, err := NewResolver(filepath.Join(t.TempDir(), "nope.geojson"),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)

	var dsErr *domain.DataSourceUnavailableError
	require.ErrorAs(t, err, &dsErr)
}

func TestNewResolverReadsZippedDataset(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "boundaries.zip")

	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	w, err := zw.Create("gaul/boundaries.geojson")
	require.NoError(t, err)
	_, err = w.Write(testDataset(t))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	r, err := NewResolver(zipPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	rec := r.GeometryForCountryName("Nepal")
	require.NotNil(t, rec)
	assert.Equal(t, []float64{80, 26, 88, 30}, rec.BBox)
}

func TestGeometryFromAdminUnits(t *testing.T) {
	r := newTestResolver(t)

	t.Run("single level-1 unit", func(t *testing.T) {
		rec := r.GeometryFromAdminUnits(`[{"adm1_code": 2801}]`)
		require.NotNil(t, rec)
		assert.Equal(t, "Polygon", rec.Geometry.Type)
		assert.Equal(t, []float64{84, 27, 86, 29}, rec.BBox)
	})

	t.Run("level-2 unit walks up to its level-1 parent", func(t *testing.T) {
		rec := r.GeometryFromAdminUnits(`[{"adm2_code": 41101}]`)
		require.NotNil(t, rec)
		assert.Equal(t, []float64{84, 27, 86, 29}, rec.BBox)
	})

	t.Run("overlapping references deduplicate", func(t *testing.T) {
		rec := r.GeometryFromAdminUnits(`[{"adm1_code": 2801}, {"adm2_code": 41101}]`)
		require.NotNil(t, rec)
		assert.Equal(t, "Polygon", rec.Geometry.Type)
		assert.Equal(t, []float64{84, 27, 86, 29}, rec.BBox)
	})

	t.Run("two units union into a multipolygon", func(t *testing.T) {
		rec := r.GeometryFromAdminUnits(`[{"adm1_code": 2801}, {"adm1_code": 2802}]`)
		require.NotNil(t, rec)
		assert.Equal(t, "MultiPolygon", rec.Geometry.Type)
		assert.Equal(t, []float64{82, 27, 86, 29}, rec.BBox)
	})

	t.Run("string codes are accepted", func(t *testing.T) {
		rec := r.GeometryFromAdminUnits(`[{"adm1_code": "2802"}]`)
		require.NotNil(t, rec)
		assert.Equal(t, []float64{82, 27, 84, 29}, rec.BBox)
	})

	t.Run("empty and malformed lists resolve to nothing", func(t *testing.T) {
		assert.Nil(t, r.GeometryFromAdminUnits(""))
		assert.Nil(t, r.GeometryFromAdminUnits("[]"))
		assert.Nil(t, r.GeometryFromAdminUnits("{not json"))
		assert.Nil(t, r.GeometryFromAdminUnits(`[{"adm1_code": 99999}]`))
	})
}

func TestAdminUnitCacheSkipsRepeatScans(t *testing.T) {
	r := newTestResolver(t)

	first := r.GeometryFromAdminUnits(`[{"adm2_code": 41101}]`)
	require.NotNil(t, first)

	scans := r.DatasetScans()
	second := r.GeometryFromAdminUnits(`[{"adm2_code": 41101}]`)
	require.NotNil(t, second)

	assert.Equal(t, scans, r.DatasetScans(), "second lookup must not rescan the dataset")
	assert.Same(t, first, second)
}

func TestResolverCachesSafelyUnderConcurrency(t *testing.T) {
	r := newTestResolver(t)

	countryRecs := make([]*domain.GeometryRecord, 16)
	adminRecs := make([]*domain.GeometryRecord, 16)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			countryRecs[i] = r.GeometryForCountryName("Nepal")
			adminRecs[i] = r.GeometryFromAdminUnits(`[{"adm1_code": 2801}]`)
		}()
	}
	wg.Wait()

	require.NotNil(t, countryRecs[0])
	require.NotNil(t, adminRecs[0])
	for i := 1; i < 16; i++ {
		assert.Same(t, countryRecs[0], countryRecs[i],
			"every caller must observe the same cached country record")
		assert.Same(t, adminRecs[0], adminRecs[i],
			"every caller must observe the same cached admin-unit record")
	}
}

func TestGeometryForCountryName(t *testing.T) {
	r := newTestResolver(t)

	t.Run("resolves case-insensitively", func(t *testing.T) {
		rec := r.GeometryForCountryName("nepal")
		require.NotNil(t, rec)
		assert.Equal(t, []float64{80, 26, 88, 30}, rec.BBox)

		again := r.GeometryForCountryName("NEPAL")
		assert.Same(t, rec, again)
	})

	t.Run("unknown name resolves to nothing", func(t *testing.T) {
		assert.Nil(t, r.GeometryForCountryName("Atlantis"))
		assert.Nil(t, r.GeometryForCountryName("  "))
	})

	t.Run("repeat lookups are cache hits", func(t *testing.T) {
		r.GeometryForCountryName("India")
		scans := r.DatasetScans()
		r.GeometryForCountryName("India")
		assert.Equal(t, scans, r.DatasetScans())
	})
}

func TestGeometryForISO3(t *testing.T) {
	r := newTestResolver(t)

	rec := r.GeometryForISO3("NPL")
	require.NotNil(t, rec)
	assert.Equal(t, []float64{80, 26, 88, 30}, rec.BBox)

	assert.Same(t, rec, r.GeometryForISO3("npl"), "codes are normalized to upper case")
	assert.Nil(t, r.GeometryForISO3("XYZ"))
	assert.Nil(t, r.GeometryForISO3(""))
}

func TestCountryISO3FromPoint(t *testing.T) {
	r := newTestResolver(t)

	assert.Equal(t, "NPL", r.CountryISO3FromPoint(orb.Point{85, 28}))
	assert.Equal(t, "IND", r.CountryISO3FromPoint(orb.Point{77, 20}))
	assert.Equal(t, "", r.CountryISO3FromPoint(orb.Point{0, -50}))

	scans := r.DatasetScans()
	assert.Equal(t, "NPL", r.CountryISO3FromPoint(orb.Point{85, 28}))
	assert.Equal(t, scans, r.DatasetScans(), "repeat point lookup must hit the cache")
}
