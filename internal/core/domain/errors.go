package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrInvalidFilter marks a rejected query parameter on the review API.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrMissingColumn marks a fatal schema mismatch: a required column or
	// join key is absent from an input file. Runs abort on it; no report is
	// produced.
	ErrMissingColumn = errors.New("required column missing")
)

// MissingColumnError carries the source and column that made an input file
// unusable. It unwraps to ErrMissingColumn.
type MissingColumnError struct {
	Source string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: required column %q missing", e.Source, e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }
