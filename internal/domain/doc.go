// Package domain models disaster records flowing through the hazard
// classification and correlation pipeline.
//
// # Hazard Coding Dialects
//
// Every upstream feed (EM-DAT, GDACS, USGS, GLIDE, IBTrACS, IDMC, ...) speaks
// its own hazard-coding dialect. A record may carry any mix of:
//
//	UNDRR-ISC 2025:  two uppercase letters + four digits, e.g. "MH0035".
//	UNDRR-ISC 2020:  legacy alphanumeric keys, largely overlapping 2025.
//	GLIDE:           two-letter abbreviations, e.g. "FL" (flood), "EQ".
//	EM-DAT:          hyphenated cluster slugs, e.g. "nat-hyd-flo-flo".
//
// Order is significant: the first code on a record is the primary hazard.
// GLIDE codes are ambiguous (one "FL" maps to several flood sub-types) and
// are disambiguated against the other codes on the same record. See
// internal/taxonomy for the resolution rules.
//
// # Correlation Keys
//
// Independently reported event, hazard, and impact records about the same
// real-world disaster are joined on a deterministic correlation key:
//
//	"{YYYYMMDD}-{ISO3}-{cluster}-{episode}-GCDB"
//	e.g. "20240115-NPL-nat-cli-dro-dro-1-GCDB"
//
// The date is the event date in UTC, the country is the first ISO3 code on
// the record, the cluster is resolved from the primary hazard code, and the
// episode is a 1-based sequence number distinguishing successive phases of
// one evolving disaster. The key is a pure function of its inputs: no
// randomness, no wall clock, so any two transformers seeing the same facts
// emit the same key.
//
// # Administrative Geography
//
// Geometries come from a GAUL-style boundary dataset organised in admin
// levels 0-2 (country / province / district). Records reference geography as
// a JSON list of admin-unit codes, a free-text country name, or a bare
// point; the geospatial resolver in internal/geo maps each form to a
// geometry plus bounding box.
//
// # ID Generation
//
// Output record IDs are deterministic SHA-256 hashes of
// source|source_id|correlation_id. Reprocessing the same raw record yields
// the same ID, which keeps downstream upserts idempotent. See [GenerateID].
package domain
