package domain

import "github.com/paulmach/orb"

// Geocoder resolves geography references against an admin boundary dataset.
// All methods return nil (or "") for "not found" — absence of geometry is
// expected data quality, not an error. Implementations must be safe for
// concurrent use.
type Geocoder interface {
	// GeometryFromAdminUnits resolves a JSON list of admin-unit references
	// ({"adm1_code": n} or {"adm2_code": n}) to the union of the referenced
	// level-1 geometries.
	GeometryFromAdminUnits(adminUnits string) *GeometryRecord

	// GeometryForCountryName resolves a free-text country name,
	// case-insensitively, to the union of the country's admin-0 features.
	GeometryForCountryName(name string) *GeometryRecord

	// GeometryForISO3 resolves an ISO3 country code to the country geometry,
	// when the boundary dataset carries ISO3 attributes.
	GeometryForISO3(iso3 string) *GeometryRecord

	// CountryISO3FromPoint returns the ISO3 code of the country containing
	// the point, or "" when no feature contains it.
	CountryISO3FromPoint(pt orb.Point) string
}
