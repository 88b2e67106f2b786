package taxonomy

import (
	"log/slog"
	"regexp"
	"sort"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
)

var (
	// undrr2025Re matches UNDRR-ISC 2025 keys: two uppercase letters and
	// four digits, e.g. "MH0035".
	undrr2025Re = regexp.MustCompile(`^[A-Z]{2}\d{4}$`)

	// glideRe matches GLIDE hazard abbreviations, e.g. "FL", "EQ".
	glideRe = regexp.MustCompile(`^[A-Z]{2}$`)

	// emdatRe matches EM-DAT cluster slugs, e.g. "nat-hyd-flo-flo".
	emdatRe = regexp.MustCompile(`^[a-z]{3}(?:-[a-z]{3}){1,3}$`)
)

// Resolver answers classification questions against a taxonomy table.
// Stateless beyond the table reference; safe for concurrent use.
type Resolver struct {
	table  *Table
	logger *slog.Logger
}

// NewResolver creates a Resolver over the given table.
func NewResolver(table *Table, logger *slog.Logger) *Resolver {
	return &Resolver{table: table, logger: logger}
}

// ResolveClusterCode reduces an ordered hazard-code list to one canonical
// EM-DAT cluster code.
//
// Each code is looked up in scheme priority order UNDRR-2025 → UNDRR-2020 →
// EM-DAT → GLIDE and, when matched, contributes one vote (its row's EM-DAT
// cluster key). Empty votes are dropped, the majority wins, and ties break
// by first occurrence in vote order — never alphabetically, so the primary
// code's cluster prevails when counts are equal.
//
// Returns NoHazardCodesError for an empty list and NoClusterMatchError when
// no code matched any taxonomy row.
func (r *Resolver) ResolveClusterCode(codes []string) (string, error) {
	if len(codes) == 0 {
		return "", &domain.NoHazardCodesError{}
	}
	if err := r.table.load(); err != nil {
		return "", err
	}

	var votes []string
	for _, code := range codes {
		vote, ok := r.voteFor(code, codes)
		if !ok || vote == "" {
			continue
		}
		votes = append(votes, vote)
	}
	if len(votes) == 0 {
		return "", &domain.NoClusterMatchError{Codes: codes}
	}

	// Tally with first-seen order preserved for the tie-break.
	counts := make(map[string]int, len(votes))
	firstSeen := make(map[string]int, len(votes))
	for i, v := range votes {
		counts[v]++
		if _, ok := firstSeen[v]; !ok {
			firstSeen[v] = i
		}
	}

	winner := votes[0]
	for v, n := range counts {
		switch {
		case n > counts[winner]:
			winner = v
		case n == counts[winner] && firstSeen[v] < firstSeen[winner]:
			winner = v
		}
	}
	return winner, nil
}

// voteFor resolves one code to its cluster vote via the scheme cascade.
func (r *Resolver) voteFor(code string, allCodes []string) (string, bool) {
	if row, ok := r.table.by2025[code]; ok {
		return row.EMDAT, true
	}
	if row, ok := r.table.by2020[code]; ok {
		return row.EMDAT, true
	}
	if row, ok := r.table.byEMDAT[code]; ok {
		return row.EMDAT, true
	}
	if rows, ok := r.table.byGlide[code]; ok {
		return r.glideVote(code, rows, allCodes), true
	}
	return "", false
}

// glideVote disambiguates a one-to-many GLIDE match using the other codes on
// the record: prefer the row whose 2025 key co-occurs in the input, then a
// row whose 2020 or EM-DAT key co-occurs, then the first row with no legacy
// 2020 key (the scheme-default sub-type), then the first row outright.
//
// When the chosen row has no cluster key the vote falls back to the last
// hazard code on the record verbatim. That mirrors the upstream catalogue's
// historical behaviour and keeps existing correlation ids stable; it can
// mask source data problems, so it is logged for audit.
func (r *Resolver) glideVote(code string, rows []*Row, allCodes []string) string {
	present := make(map[string]bool, len(allCodes))
	for _, c := range allCodes {
		present[c] = true
	}

	row := rows[0]
	found := false
	for _, candidate := range rows {
		if candidate.UNDRR2025 != "" && present[candidate.UNDRR2025] {
			row, found = candidate, true
			break
		}
	}
	if !found {
		for _, candidate := range rows {
			if (candidate.UNDRR2020 != "" && present[candidate.UNDRR2020]) ||
				(candidate.EMDAT != "" && present[candidate.EMDAT]) {
				row, found = candidate, true
				break
			}
		}
	}
	if !found {
		for _, candidate := range rows {
			if candidate.UNDRR2020 == "" {
				row = candidate
				break
			}
		}
	}

	if row.EMDAT == "" {
		last := allCodes[len(allCodes)-1]
		r.logger.Debug("glide row has no cluster key, voting with last record code",
			"glide_code", code, "fallback", last)
		return last
	}
	return row.EMDAT
}

// CanonicalCodes normalizes a hazard-code list into the ordered
// [undrr_2025, glide, emdat] tuple, omitting unresolved slots.
//
// A UNDRR-2025 code already on the record is kept as-is; otherwise one is
// derived from the first code that resolves to a taxonomy row carrying a
// 2025 key. The GLIDE and EM-DAT slots are filled only from codes present
// on the record (first of each scheme wins).
//
// Returns NoHazardCodesError for an empty list.
func (r *Resolver) CanonicalCodes(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, &domain.NoHazardCodesError{}
	}
	if err := r.table.load(); err != nil {
		return nil, err
	}

	var undrr2025, glide, emdat string
	for _, code := range codes {
		switch {
		case undrr2025 == "" && r.is2025(code):
			undrr2025 = code
		case glide == "" && r.isGlide(code):
			glide = code
		case emdat == "" && r.isEMDAT(code):
			emdat = code
		}
	}

	if undrr2025 == "" {
		for _, code := range codes {
			if row, ok := r.rowFor(code, codes); ok && row.UNDRR2025 != "" {
				undrr2025 = row.UNDRR2025
				break
			}
		}
	}

	var out []string
	for _, c := range []string{undrr2025, glide, emdat} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// Keywords returns the sorted, deduplicated human-readable labels (sub-type,
// cluster, and family) for every code that resolves. The first matching
// scheme wins per code; there is no voting. Empty input yields empty output.
func (r *Resolver) Keywords(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	if err := r.table.load(); err != nil {
		r.logger.Warn("keywords lookup skipped, taxonomy unavailable", "error", err)
		return nil
	}

	set := make(map[string]bool)
	for _, code := range codes {
		row, ok := r.rowFor(code, codes)
		if !ok {
			continue
		}
		for _, label := range []string{row.Label, row.ClusterLabel, row.FamilyLabel} {
			if label != "" {
				set[label] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for label := range set {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// rowFor finds the taxonomy row for one code via the scheme cascade,
// applying GLIDE disambiguation against the full code list.
func (r *Resolver) rowFor(code string, allCodes []string) (*Row, bool) {
	if row, ok := r.table.by2025[code]; ok {
		return row, true
	}
	if row, ok := r.table.by2020[code]; ok {
		return row, true
	}
	if row, ok := r.table.byEMDAT[code]; ok {
		return row, true
	}
	if rows, ok := r.table.byGlide[code]; ok {
		return r.glideRow(rows, allCodes), true
	}
	return nil, false
}

// glideRow applies the same disambiguation order as glideVote but returns
// the row itself.
func (r *Resolver) glideRow(rows []*Row, allCodes []string) *Row {
	present := make(map[string]bool, len(allCodes))
	for _, c := range allCodes {
		present[c] = true
	}
	for _, candidate := range rows {
		if candidate.UNDRR2025 != "" && present[candidate.UNDRR2025] {
			return candidate
		}
	}
	for _, candidate := range rows {
		if (candidate.UNDRR2020 != "" && present[candidate.UNDRR2020]) ||
			(candidate.EMDAT != "" && present[candidate.EMDAT]) {
			return candidate
		}
	}
	for _, candidate := range rows {
		if candidate.UNDRR2020 == "" {
			return candidate
		}
	}
	return rows[0]
}

// is2025 reports whether code is a UNDRR-ISC 2025 key: either present in the
// table's 2025 index or shaped like one without colliding with another
// scheme's index.
func (r *Resolver) is2025(code string) bool {
	if _, ok := r.table.by2025[code]; ok {
		return true
	}
	if _, ok := r.table.by2020[code]; ok {
		return false
	}
	return undrr2025Re.MatchString(code)
}

func (r *Resolver) isGlide(code string) bool {
	if _, ok := r.table.byGlide[code]; ok {
		return true
	}
	return glideRe.MatchString(code)
}

func (r *Resolver) isEMDAT(code string) bool {
	if _, ok := r.table.byEMDAT[code]; ok {
		return true
	}
	return emdatRe.MatchString(code)
}
