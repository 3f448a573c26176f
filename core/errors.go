package core

import (
	"errors"
	"fmt"
)

// ExtractionError reports a batch whose rows could not be decoded against the
// requested schema.
type ExtractionError struct {
	Field  string // qualified column name, e.g. "add.size"
	Row    int
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extraction error for %s at row %d: %s", e.Field, e.Row, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// FilterError reports a data-skipping evaluation failure for a batch.
type FilterError struct {
	Err error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("data skipping filter failed: %v", e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// OrderingError reports a batch delivered out of newest-to-oldest order.
type OrderingError struct {
	Previous int64
	Current  int64
	Message  string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("batch ordering violation (previous version %d, current version %d): %s", e.Previous, e.Current, e.Message)
}

func IsExtractionError(err error) bool {
	var extractionError *ExtractionError
	return errors.As(err, &extractionError)
}

func IsFilterError(err error) bool {
	var filterError *FilterError
	return errors.As(err, &filterError)
}

func IsOrderingError(err error) bool {
	var orderingError *OrderingError
	return errors.As(err, &orderingError)
}
