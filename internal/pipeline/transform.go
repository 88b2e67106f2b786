package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
	"github.com/gcdb-labs/disaster-etl/internal/observability"
	"github.com/gcdb-labs/disaster-etl/internal/taxonomy"
)

// RecordTransformer implements Transformer: it classifies the record's
// hazard codes, mints the correlation id, and resolves geometry.
type RecordTransformer struct {
	resolver *taxonomy.Resolver
	geocoder domain.Geocoder
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewTransformer creates a RecordTransformer. Pass a nil geocoder to disable
// geometry resolution; records then carry geo_source "none".
func NewTransformer(resolver *taxonomy.Resolver, geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *RecordTransformer {
	return &RecordTransformer{
		resolver: resolver,
		geocoder: geocoder,
		logger:   logger,
		metrics:  metrics,
	}
}

// Transform resolves one raw record. Classification or correlation failures
// fail the record; geometry resolution degrades gracefully to "none".
func (t *RecordTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.ResolvedRecord, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.ResolvedRecord{}, err
	}

	cluster, err := t.resolver.ResolveClusterCode(rec.HazardCodes)
	if err != nil {
		t.countClusterFailure(err)
		return domain.ResolvedRecord{}, fmt.Errorf("classify record %s/%s: %w", rec.Source, rec.SourceID, err)
	}
	t.metrics.ClusterResolutions.WithLabelValues("resolved").Inc()

	eventTime := rec.EventTime()
	correlationID, err := domain.GenerateCorrelationID(t.resolver, rec.HazardCodes, rec.CountryCodes, eventTime, rec.EpisodeNumber)
	if err != nil {
		outcome := "error"
		var missing *domain.MissingFieldsError
		if errors.As(err, &missing) {
			outcome = "missing_fields"
		}
		t.metrics.CorrelationIDs.WithLabelValues(outcome).Inc()
		return domain.ResolvedRecord{}, fmt.Errorf("correlate record %s/%s: %w", rec.Source, rec.SourceID, err)
	}
	t.metrics.CorrelationIDs.WithLabelValues("generated").Inc()

	canonical, err := t.resolver.CanonicalCodes(rec.HazardCodes)
	if err != nil {
		return domain.ResolvedRecord{}, fmt.Errorf("canonicalize codes for %s/%s: %w", rec.Source, rec.SourceID, err)
	}

	out := domain.ResolvedRecord{
		ID:            domain.GenerateID(rec.Source, rec.SourceID, correlationID),
		Source:        rec.Source,
		SourceID:      rec.SourceID,
		Roles:         rec.Roles,
		Title:         rec.Title,
		CorrelationID: correlationID,
		HazardCodes:   canonical,
		HazardCluster: cluster,
		Keywords:      t.resolver.Keywords(rec.HazardCodes),
		CountryCodes:  rec.CountryCodes,
		EventDatetime: eventTime,
		EpisodeNumber: rec.EpisodeNumber,
		RawPayload:    raw.Value,
		ProcessedAt:   domain.Now(),
	}

	t.resolveGeometry(&out, rec)
	return out, nil
}

// resolveGeometry fills in geometry from the best available geography
// reference: admin units, then country name, then a bare point. Failures
// leave the record without geometry rather than failing it.
func (t *RecordTransformer) resolveGeometry(out *domain.ResolvedRecord, rec domain.RawRecord) {
	out.GeoSource = "none"
	if t.geocoder == nil {
		return
	}

	if geo := t.geometryFor(rec); geo != nil {
		out.Geometry = geo.rec.Geometry
		out.BBox = geo.rec.BBox
		out.GeoSource = geo.source
	}
	t.metrics.GeoResolutions.WithLabelValues(out.GeoSource).Inc()
}

type geoResult struct {
	rec    *domain.GeometryRecord
	source string
}

func (t *RecordTransformer) geometryFor(rec domain.RawRecord) *geoResult {
	if len(rec.AdminUnits) > 0 {
		if g := t.geocoder.GeometryFromAdminUnits(string(rec.AdminUnits)); g != nil {
			return &geoResult{rec: g, source: "admin_units"}
		}
		t.logger.Debug("admin units resolved no geometry, falling back",
			"source", rec.Source, "source_id", rec.SourceID)
	}

	if rec.CountryName != "" {
		if g := t.geocoder.GeometryForCountryName(rec.CountryName); g != nil {
			return &geoResult{rec: g, source: "country_name"}
		}
		t.logger.Debug("country name resolved no geometry, falling back",
			"source", rec.Source, "source_id", rec.SourceID, "country_name", rec.CountryName)
	}

	if len(rec.Point) == 2 {
		pt := orb.Point{rec.Point[0], rec.Point[1]}
		if iso3 := t.geocoder.CountryISO3FromPoint(pt); iso3 != "" {
			if g := t.geocoder.GeometryForISO3(iso3); g != nil {
				return &geoResult{rec: g, source: "point"}
			}
		}
	}
	return nil
}

func (t *RecordTransformer) countClusterFailure(err error) {
	var noCodes *domain.NoHazardCodesError
	var noMatch *domain.NoClusterMatchError
	switch {
	case errors.As(err, &noCodes):
		t.metrics.ClusterResolutions.WithLabelValues("no_codes").Inc()
	case errors.As(err, &noMatch):
		t.metrics.ClusterResolutions.WithLabelValues("no_match").Inc()
	}
}
