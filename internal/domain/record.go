package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
)

// RawRecord is the flat JSON a source-specific transformer publishes to the
// source topic: raw field values plus whichever geography reference the feed
// provides (admin units, country name, or a bare point).
type RawRecord struct {
	Source        string   `json:"source"`    // feed tag, e.g. "emdat", "gdacs", "usgs"
	SourceID      string   `json:"source_id"` // feed-local record identifier
	Roles         []string `json:"roles,omitempty"`
	Title         string   `json:"title,omitempty"`
	HazardCodes   []string `json:"hazard_codes"`  // ordered, first is primary
	CountryCodes  []string `json:"country_codes"` // ordered ISO3, first is primary
	EventDatetime string   `json:"event_datetime"`
	EpisodeNumber int      `json:"episode_number"`

	// Geography references, best first. Admin units is a JSON list of
	// {"adm1_code": n} / {"adm2_code": n} objects kept verbatim.
	AdminUnits  json.RawMessage `json:"admin_units,omitempty"`
	CountryName string          `json:"country_name,omitempty"`
	Point       []float64       `json:"point,omitempty"` // [lon, lat]
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// GeometryRecord is a resolved geometry plus its bounding box
// [minlon, minlat, maxlon, maxlat], ready for embedding into a STAC-like
// record. Never mutated once produced.
type GeometryRecord struct {
	Geometry *geojson.Geometry `json:"geometry"`
	BBox     []float64         `json:"bbox"`
}

// ResolvedRecord is the pipeline output: the raw record's facts plus the
// canonical hazard classification, correlation key, and geometry.
type ResolvedRecord struct {
	ID            string   `json:"id"`
	Source        string   `json:"source"`
	SourceID      string   `json:"source_id"`
	Roles         []string `json:"roles,omitempty"`
	Title         string   `json:"title,omitempty"`
	CorrelationID string   `json:"correlation_id"`

	HazardCodes   []string  `json:"hazard_codes"` // canonical [undrr_2025, glide?, emdat?]
	HazardCluster string    `json:"hazard_cluster"`
	Keywords      []string  `json:"keywords,omitempty"`
	CountryCodes  []string  `json:"country_codes"`
	EventDatetime time.Time `json:"event_datetime"`
	EpisodeNumber int       `json:"episode_number"`

	Geometry  *geojson.Geometry `json:"geometry,omitempty"`
	BBox      []float64         `json:"bbox,omitempty"`
	GeoSource string            `json:"geo_source,omitempty"` // "admin_units", "country_name", "point", "none"

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ParseRawEvent deserializes a RawEvent's value into a RawRecord.
func ParseRawEvent(raw RawEvent) (RawRecord, error) {
	var rec RawRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return RawRecord{}, fmt.Errorf("parse raw record: %w", err)
	}
	return rec, nil
}

// EventTime parses the record's event datetime as RFC 3339 and normalizes it
// to UTC. A missing or malformed value returns the zero time; the correlation
// generator rejects zero times with a MissingFieldsError.
func (r RawRecord) EventTime() time.Time {
	if r.EventDatetime == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, r.EventDatetime)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// GenerateID produces a deterministic ID from the record's identity fields.
// Reprocessing the same raw record produces the same ID, so downstream
// upserts stay idempotent across replays.
func GenerateID(source, sourceID, correlationID string) string {
	input := fmt.Sprintf("%s|%s|%s", source, sourceID, correlationID)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if source == "" {
		return short
	}
	return source + "-" + short
}
