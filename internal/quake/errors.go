package quake

import (
	"errors"
	"fmt"
)

var (
	// ErrRunInProgress is returned by Service.Run while another run is active.
	ErrRunInProgress = errors.New("ingestion run already in progress")

	// ErrBelowMagnitudeFloor marks a row dropped by the quality filter.
	ErrBelowMagnitudeFloor = errors.New("magnitude below floor")

	// ErrStorageUnavailable wraps any store failure other than a duplicate key.
	// It is fatal to the run that hits it.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ParseError describes a table row that could not be turned into an Event.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d: %s: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
