package domain

import (
	"fmt"
	"time"
)

// CorrelationSourceTag marks keys minted by this engine; all GCDB-family
// transformers share it so keys join across feeds.
const CorrelationSourceTag = "GCDB"

// ClusterResolver resolves an ordered hazard-code list to one canonical
// EM-DAT cluster code. Implemented by taxonomy.Resolver.
type ClusterResolver interface {
	ResolveClusterCode(codes []string) (string, error)
}

// GenerateCorrelationID renders the deterministic join key
// "{YYYYMMDD}-{ISO3}-{cluster}-{episode}-GCDB" for a record's facts.
//
// The cluster component is resolved from the primary hazard code only
// (hazardCodes[0]); secondary codes influence classification elsewhere but
// never the join key. Output depends purely on the arguments — no hidden
// state, no wall clock.
//
// Returns a MissingFieldsError naming every absent precondition when
// hazardCodes or countryCodes is empty, eventTime is zero, or episode < 1.
func GenerateCorrelationID(resolver ClusterResolver, hazardCodes, countryCodes []string, eventTime time.Time, episode int) (string, error) {
	var missing []string
	if len(hazardCodes) == 0 {
		missing = append(missing, "hazard_codes")
	}
	if len(countryCodes) == 0 {
		missing = append(missing, "country_codes")
	}
	if eventTime.IsZero() {
		missing = append(missing, "event_datetime")
	}
	if episode < 1 {
		missing = append(missing, "episode_number")
	}
	if len(missing) > 0 {
		return "", &MissingFieldsError{Fields: missing}
	}

	cluster, err := resolver.ResolveClusterCode(hazardCodes[:1])
	if err != nil {
		return "", fmt.Errorf("resolve cluster for correlation id: %w", err)
	}

	return fmt.Sprintf("%s-%s-%s-%d-%s",
		eventTime.UTC().Format("20060102"),
		countryCodes[0],
		cluster,
		episode,
		CorrelationSourceTag,
	), nil
}
