// Package taxonomy reconciles the four hazard-coding dialects (UNDRR-ISC
// 2025, UNDRR-ISC 2020, GLIDE, EM-DAT) against one reference table and
// resolves records to a single canonical cluster code.
//
// The mapping lives in a versioned CSV dataset, not in code: adding a hazard
// sub-type is a dataset change, and a stale table shows up as a dataset
// version, not a silently missing dictionary entry. A copy of the current
// dataset is embedded as the default; deployments may override it with a
// newer file on disk.
package taxonomy

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
)

//go:embed hazard_profiles.csv
var embeddedProfiles []byte

// requiredColumns are the columns every taxonomy dataset version must carry.
var requiredColumns = []string{
	"undrr_2025_key", "undrr_key", "glide_code", "emdat_key",
	"label", "cluster_label", "family_label",
}

// Row is one hazard sub-type: its key in each coding scheme plus its
// human-readable labels. Keys may be empty when a scheme has no equivalent.
type Row struct {
	UNDRR2025 string
	UNDRR2020 string
	Glide     string
	EMDAT     string

	Label        string
	ClusterLabel string
	FamilyLabel  string
}

// Table is the immutable hazard profile reference table. The dataset is read
// and indexed on first access, at most once, guarded by a sync.Once; after
// that all reads are lock-free. Safe for concurrent use.
type Table struct {
	path string // empty means the embedded dataset

	once    sync.Once
	loadErr error
	rows    []Row

	// Scheme indexes. UNDRR and EM-DAT keys are unique per dataset row;
	// GLIDE codes map one-to-many and keep dataset order.
	by2025  map[string]*Row
	by2020  map[string]*Row
	byEMDAT map[string]*Row
	byGlide map[string][]*Row
}

// NewTable returns a table backed by the embedded hazard profile dataset.
func NewTable() *Table {
	return &Table{}
}

// NewTableFromPath returns a table backed by a CSV file on disk, overriding
// the embedded dataset.
func NewTableFromPath(path string) *Table {
	return &Table{path: path}
}

// Rows returns all taxonomy rows, loading the dataset on first call.
// The returned slice must not be modified.
func (t *Table) Rows() ([]Row, error) {
	if err := t.load(); err != nil {
		return nil, err
	}
	return t.rows, nil
}

// load reads and indexes the dataset exactly once per table instance.
func (t *Table) load() error {
	t.once.Do(func() {
		var r io.Reader
		source := "embedded hazard_profiles.csv"
		if t.path != "" {
			source = t.path
			f, err := os.Open(t.path)
			if err != nil {
				t.loadErr = &domain.DataSourceUnavailableError{Path: t.path, Err: err}
				return
			}
			defer f.Close()
			r = f
		} else {
			r = bytes.NewReader(embeddedProfiles)
		}

		rows, err := parseProfiles(r)
		if err != nil {
			t.loadErr = &domain.DataSourceUnavailableError{Path: source, Err: err}
			return
		}

		t.rows = rows
		t.by2025 = make(map[string]*Row)
		t.by2020 = make(map[string]*Row)
		t.byEMDAT = make(map[string]*Row)
		t.byGlide = make(map[string][]*Row)
		for i := range t.rows {
			row := &t.rows[i]
			if row.UNDRR2025 != "" {
				t.by2025[row.UNDRR2025] = row
			}
			if row.UNDRR2020 != "" {
				t.by2020[row.UNDRR2020] = row
			}
			if row.EMDAT != "" {
				t.byEMDAT[row.EMDAT] = row
			}
			if row.Glide != "" {
				t.byGlide[row.Glide] = append(t.byGlide[row.Glide], row)
			}
		}
	})
	return t.loadErr
}

// parseProfiles reads a header-mapped CSV into rows, validating that all
// required columns are present.
func parseProfiles(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	all, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read taxonomy csv: %w", err)
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("taxonomy csv has no data rows")
	}

	col := make(map[string]int, len(all[0]))
	for i, h := range all[0] {
		col[h] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("taxonomy csv missing column %q", name)
		}
	}

	field := func(record []string, name string) string {
		i := col[name]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	rows := make([]Row, 0, len(all)-1)
	for _, record := range all[1:] {
		rows = append(rows, Row{
			UNDRR2025:    field(record, "undrr_2025_key"),
			UNDRR2020:    field(record, "undrr_key"),
			Glide:        field(record, "glide_code"),
			EMDAT:        field(record, "emdat_key"),
			Label:        field(record, "label"),
			ClusterLabel: field(record, "cluster_label"),
			FamilyLabel:  field(record, "family_label"),
		})
	}
	return rows, nil
}
