package signal

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientAnchors is returned when fewer than three anchors (or
	// mismatched anchor/distance lists) are given to the solver.
	ErrInsufficientAnchors = errors.New("at least 3 anchors with distances are required")

	// ErrDegenerateGeometry is returned when the anchors cannot fix a unique
	// position, e.g. they are collinear or coincident.
	ErrDegenerateGeometry = errors.New("anchor geometry is degenerate")

	// ErrInvalidRSSI marks a report whose RSSI is non-numeric or out of range.
	ErrInvalidRSSI = errors.New("invalid rssi")

	// ErrUnknownSource is returned for source type names outside the known set.
	ErrUnknownSource = errors.New("unknown source type")
)

// ScanError reports a failed scan cycle for one source type.
type ScanError struct {
	Source SourceType
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s scan failed: %v", e.Source, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
