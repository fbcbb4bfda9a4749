package importer

import (
	"errors"
	"fmt"
)

var (
	// ErrRepositoryRequired is returned when no item repository is provided.
	ErrRepositoryRequired = errors.New("item repository required")

	// ErrMissingColumn is returned when the CSV header lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidRow is returned for rows whose fields cannot be parsed.
	ErrInvalidRow = errors.New("invalid row")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// RowError describes why a single input row was not imported.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
