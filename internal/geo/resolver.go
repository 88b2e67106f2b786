package geo

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
)

// unit is one boundary feature flattened to the attributes queries need.
// adm1 and adm2 are zero on country-level features.
type unit struct {
	adm0Code int
	adm0Name string
	adm1Code int
	adm2Code int
	iso3     string

	geom  orb.Geometry
	bound orb.Bound
}

// Resolver implements domain.Geocoder against an in-memory boundary dataset.
//
// The dataset is loaded once at construction; an unreadable dataset is fatal
// because every record the pipeline would process against it degrades
// silently otherwise. Queries scan the dataset and memoize their results in
// per-instance caches, so repeated references to the same admin units or
// country cost one scan total. Safe for concurrent use.
type Resolver struct {
	units  []unit
	logger *slog.Logger

	scans atomic.Int64

	mu          sync.RWMutex
	geometries  map[string]*domain.GeometryRecord
	adm0ByName  map[string]int
	adm1ByAdm2  map[int]int
	iso3ByPoint map[string]string
}

// NewResolver loads the boundary dataset at path (a GeoJSON file, optionally
// zipped) and returns a resolver over it.
func NewResolver(path string, logger *slog.Logger) (*Resolver, error) {
	fc, err := loadFeatureCollection(path)
	if err != nil {
		return nil, err
	}

	units := make([]unit, 0, len(fc.Features))
	for _, feat := range fc.Features {
		adm0, ok := propInt(feat.Properties, "ADM0_CODE")
		if !ok {
			continue
		}
		geom := feat.Geometry
		if geom == nil {
			continue
		}
		adm1, _ := propInt(feat.Properties, "ADM1_CODE")
		adm2, _ := propInt(feat.Properties, "ADM2_CODE")
		units = append(units, unit{
			adm0Code: adm0,
			adm0Name: propString(feat.Properties, "ADM0_NAME"),
			adm1Code: adm1,
			adm2Code: adm2,
			iso3:     propString(feat.Properties, "ISO3"),
			geom:     geom,
			bound:    geom.Bound(),
		})
	}
	if len(units) == 0 {
		return nil, &domain.DataSourceUnavailableError{
			Path: path,
			Err:  fmt.Errorf("no features with ADM0_CODE attribute"),
		}
	}

	logger.Info("boundary dataset loaded", "path", path, "features", len(units))
	return &Resolver{
		units:       units,
		logger:      logger,
		geometries:  make(map[string]*domain.GeometryRecord),
		adm0ByName:  make(map[string]int),
		adm1ByAdm2:  make(map[int]int),
		iso3ByPoint: make(map[string]string),
	}, nil
}

// DatasetScans reports how many full dataset scans queries have performed.
// Cache hits do not scan.
func (r *Resolver) DatasetScans() int64 {
	return r.scans.Load()
}

// GeometryFromAdminUnits resolves a JSON list of admin-unit references to the
// union of the referenced level-1 geometries. Level-2 references are walked
// up to their parent level-1 unit first, and duplicate level-1 units are
// merged, so overlapping references never double-count geometry.
//
// Returns nil when the list is empty, malformed, or references nothing in
// the dataset.
func (r *Resolver) GeometryFromAdminUnits(adminUnits string) *domain.GeometryRecord {
	if strings.TrimSpace(adminUnits) == "" {
		return nil
	}

	var refs []map[string]any
	if err := json.Unmarshal([]byte(adminUnits), &refs); err != nil {
		r.logger.Warn("malformed admin units list", "error", err)
		return nil
	}

	adm1Set := make(map[int]bool)
	for _, ref := range refs {
		if code, ok := refInt(ref, "adm1_code"); ok {
			adm1Set[code] = true
			continue
		}
		if code, ok := refInt(ref, "adm2_code"); ok {
			if adm1, ok := r.adm1ForAdm2(code); ok {
				adm1Set[adm1] = true
			}
		}
	}
	if len(adm1Set) == 0 {
		return nil
	}

	codes := make([]int, 0, len(adm1Set))
	for code := range adm1Set {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	key := "adm1:" + joinInts(codes)
	return r.cached(key, func() *domain.GeometryRecord {
		var geoms []orb.Geometry
		r.scan(func(u *unit) {
			if u.adm1Code != 0 && u.adm2Code == 0 && adm1Set[u.adm1Code] {
				geoms = append(geoms, u.geom)
			}
		})
		return unionRecord(geoms)
	})
}

// GeometryForCountryName resolves a free-text country name to the country
// geometry. Matching is case-insensitive on the dataset's ADM0_NAME.
// Returns nil for unknown names.
func (r *Resolver) GeometryForCountryName(name string) *domain.GeometryRecord {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	adm0, ok := r.adm0ForName(name)
	if !ok {
		return nil
	}
	return r.countryGeometry(adm0)
}

// GeometryForISO3 resolves an ISO3 country code to the country geometry,
// when the dataset carries ISO3 attributes. Returns nil otherwise.
func (r *Resolver) GeometryForISO3(iso3 string) *domain.GeometryRecord {
	iso3 = strings.ToUpper(strings.TrimSpace(iso3))
	if iso3 == "" {
		return nil
	}

	return r.cached("iso3:"+iso3, func() *domain.GeometryRecord {
		var geoms []orb.Geometry
		r.scan(func(u *unit) {
			if u.iso3 == iso3 && u.adm1Code == 0 && u.adm2Code == 0 {
				geoms = append(geoms, u.geom)
			}
		})
		if len(geoms) == 0 {
			// Dataset has no country-level features for this code; fall back
			// to the union of its sub-national features.
			r.scan(func(u *unit) {
				if u.iso3 == iso3 && u.adm1Code != 0 && u.adm2Code == 0 {
					geoms = append(geoms, u.geom)
				}
			})
		}
		return unionRecord(geoms)
	})
}

// CountryISO3FromPoint returns the ISO3 code of the country whose geometry
// contains the point, or "" when no feature contains it. Results are cached
// by coordinate rounded to three decimal places, roughly 100m.
func (r *Resolver) CountryISO3FromPoint(pt orb.Point) string {
	key := fmt.Sprintf("%.3f,%.3f", pt[0], pt[1])

	r.mu.RLock()
	iso3, ok := r.iso3ByPoint[key]
	r.mu.RUnlock()
	if ok {
		return iso3
	}

	found := ""
	r.scan(func(u *unit) {
		if found != "" || u.iso3 == "" {
			return
		}
		if !u.bound.Contains(pt) {
			return
		}
		if geometryContains(u.geom, pt) {
			found = u.iso3
		}
	})
	if found == "" {
		return ""
	}

	r.mu.Lock()
	r.iso3ByPoint[key] = found
	r.mu.Unlock()
	return found
}

// scan runs fn over every dataset unit and counts the pass.
func (r *Resolver) scan(fn func(u *unit)) {
	r.scans.Add(1)
	for i := range r.units {
		fn(&r.units[i])
	}
}

// cached returns the memoized record for key, computing and storing it on
// first use. Only successful resolutions are cached so a dataset upgrade
// mid-flight is not needed to retry a miss.
func (r *Resolver) cached(key string, compute func() *domain.GeometryRecord) *domain.GeometryRecord {
	r.mu.RLock()
	rec, ok := r.geometries[key]
	r.mu.RUnlock()
	if ok {
		return rec
	}

	rec = compute()
	if rec == nil {
		return nil
	}

	r.mu.Lock()
	if prior, ok := r.geometries[key]; ok {
		rec = prior
	} else {
		r.geometries[key] = rec
	}
	r.mu.Unlock()
	return rec
}

func (r *Resolver) adm0ForName(name string) (int, bool) {
	lower := strings.ToLower(name)

	r.mu.RLock()
	code, ok := r.adm0ByName[lower]
	r.mu.RUnlock()
	if ok {
		return code, true
	}

	found := false
	r.scan(func(u *unit) {
		if !found && strings.EqualFold(u.adm0Name, name) {
			code, found = u.adm0Code, true
		}
	})
	if !found {
		return 0, false
	}

	r.mu.Lock()
	r.adm0ByName[lower] = code
	r.mu.Unlock()
	return code, true
}

func (r *Resolver) adm1ForAdm2(adm2 int) (int, bool) {
	r.mu.RLock()
	adm1, ok := r.adm1ByAdm2[adm2]
	r.mu.RUnlock()
	if ok {
		return adm1, true
	}

	found := false
	r.scan(func(u *unit) {
		if !found && u.adm2Code == adm2 {
			adm1, found = u.adm1Code, true
		}
	})
	if !found {
		return 0, false
	}

	r.mu.Lock()
	r.adm1ByAdm2[adm2] = adm1
	r.mu.Unlock()
	return adm1, true
}

func (r *Resolver) countryGeometry(adm0 int) *domain.GeometryRecord {
	key := "adm0:" + strconv.Itoa(adm0)
	return r.cached(key, func() *domain.GeometryRecord {
		var geoms []orb.Geometry
		r.scan(func(u *unit) {
			if u.adm0Code == adm0 && u.adm1Code == 0 && u.adm2Code == 0 {
				geoms = append(geoms, u.geom)
			}
		})
		if len(geoms) == 0 {
			// No country-level feature; union the level-1 units instead.
			r.scan(func(u *unit) {
				if u.adm0Code == adm0 && u.adm1Code != 0 && u.adm2Code == 0 {
					geoms = append(geoms, u.geom)
				}
			})
		}
		return unionRecord(geoms)
	})
}

// unionRecord merges polygonal geometries into one geometry record with a
// combined bounding box. A single polygon stays a Polygon; multiple inputs
// become a MultiPolygon. Non-polygonal geometries are skipped.
func unionRecord(geoms []orb.Geometry) *domain.GeometryRecord {
	var mp orb.MultiPolygon
	var bound orb.Bound
	first := true
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		default:
			continue
		}
		if first {
			bound = g.Bound()
			first = false
		} else {
			bound = bound.Union(g.Bound())
		}
	}
	if len(mp) == 0 {
		return nil
	}

	bbox := []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
	if len(mp) == 1 {
		return &domain.GeometryRecord{Geometry: geojson.NewGeometry(mp[0]), BBox: bbox}
	}
	return &domain.GeometryRecord{Geometry: geojson.NewGeometry(mp), BBox: bbox}
}

func geometryContains(g orb.Geometry, pt orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, pt)
	default:
		return false
	}
}

func propInt(props geojson.Properties, key string) (int, bool) {
	switch v := props[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func propString(props geojson.Properties, key string) string {
	s, _ := props[key].(string)
	return s
}

func refInt(ref map[string]any, key string) (int, bool) {
	switch v := ref[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func joinInts(codes []int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}
