package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRows is returned when the input has a header but no data rows.
	ErrNoRows = errors.New("no data rows")
	// ErrUnknownColumn is returned when a column name does not exist in the frame.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrParse marks malformed content or values that do not match their declared kind.
	ErrParse = errors.New("parse error")
	// ErrMemoryBudget is returned when the engine holds more memory than allowed.
	ErrMemoryBudget = errors.New("memory budget exceeded")
)

// ParseError describes a failure to read the input file into typed columns.
type ParseError struct {
	Path   string
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("parse %s: column %q: %v", e.Path, e.Column, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }
