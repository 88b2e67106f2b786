package domain

import (
	"fmt"
	"strings"
)

// NoHazardCodesError reports a record that carried no hazard codes at all.
// Non-retryable: the source record is incomplete.
type NoHazardCodesError struct{}

func (e *NoHazardCodesError) Error() string {
	return "no hazard codes on record"
}

// NoClusterMatchError reports that none of the supplied hazard codes matched
// any row of the taxonomy table. Non-retryable: either the codes are garbage
// or the taxonomy dataset is out of date.
type NoClusterMatchError struct {
	Codes []string
}

func (e *NoClusterMatchError) Error() string {
	return fmt.Sprintf("no cluster code found for hazard codes %v", e.Codes)
}

// MissingFieldsError lists every correlation-id precondition field that was
// absent or falsy, in one message, so a single log line tells the operator
// everything wrong with the record.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields for correlation id: " + strings.Join(e.Fields, ", ")
}

// DataSourceUnavailableError is fatal: the boundary or taxonomy dataset could
// not be opened or parsed. It is a static local resource, so there is no
// automatic retry — the deployment is broken, not the data.
type DataSourceUnavailableError struct {
	Path string
	Err  error
}

func (e *DataSourceUnavailableError) Error() string {
	return fmt.Sprintf("data source unavailable: %s: %v", e.Path, e.Err)
}

func (e *DataSourceUnavailableError) Unwrap() error {
	return e.Err
}
