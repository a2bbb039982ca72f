package types

import "strings"

// DatasetRef identifies a logical dataset: a named, sharded time-series
// collection. It is immutable and usable as a map key.
type DatasetRef struct {
	// Database is the optional namespace/keyspace the dataset lives in.
	Database string

	// Dataset is the dataset name within the database.
	Dataset string
}

// NewDatasetRef creates a DatasetRef from a "database.dataset" or plain
// "dataset" string.
func NewDatasetRef(s string) DatasetRef {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return DatasetRef{Database: s[:i], Dataset: s[i+1:]}
	}
	return DatasetRef{Dataset: s}
}

// String returns the canonical "database.dataset" form.
func (d DatasetRef) String() string {
	if d.Database == "" {
		return d.Dataset
	}
	return d.Database + "." + d.Dataset
}

// IsZero reports whether the ref is empty.
func (d DatasetRef) IsZero() bool {
	return d.Database == "" && d.Dataset == ""
}
