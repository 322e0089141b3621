package gtfs

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable is returned when a required dataset is missing or cannot be parsed.
var ErrDataUnavailable = errors.New("dataset unavailable")

// DataError carries the dataset name alongside the underlying failure.
// It matches ErrDataUnavailable with errors.Is.
type DataError struct {
	Dataset string
	Err     error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("dataset %s unavailable: %v", e.Dataset, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

func (e *DataError) Is(target error) bool { return target == ErrDataUnavailable }

func unavailable(dataset string, err error) error {
	return &DataError{Dataset: dataset, Err: err}
}
