package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDatasetID is returned when a dataset identifier is not of the
// form "<target>:<dataset>".
var ErrInvalidDatasetID = errors.New("invalid dataset id")

// DatasetID identifies a dataset as "<target>:<dataset>", where target names a
// configured warehouse connection and dataset is the collection (schema) in it.
type DatasetID string

// ParseDatasetID validates and returns a DatasetID.
func ParseDatasetID(s string) (DatasetID, error) {
	s = strings.TrimSpace(s)
	target, dataset, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(target) == "" || strings.TrimSpace(dataset) == "" {
		return "", fmt.Errorf("%w: %q (want <target>:<dataset>)", ErrInvalidDatasetID, s)
	}
	return DatasetID(s), nil
}

// Target returns the warehouse target part of the identifier.
func (d DatasetID) Target() string {
	target, _, _ := strings.Cut(string(d), ":")
	return target
}

// Dataset returns the collection part of the identifier.
func (d DatasetID) Dataset() string {
	_, dataset, _ := strings.Cut(string(d), ":")
	return dataset
}

func (d DatasetID) String() string {
	return string(d)
}
