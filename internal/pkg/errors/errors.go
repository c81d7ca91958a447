// Package errors carries the sentinel error taxonomy shared across the
// importer: every stage wraps underlying failures with fmt.Errorf("...: %w",
// <sentinel>) so callers can classify a failure with errors.Is without
// parsing messages.
package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO covers failures opening, reading, writing, seeking, or closing
	// a file (including mmap failures).
	ErrIO = errors.New("io failure")

	// ErrFormatViolation covers a file whose header, record count, or
	// encoded field does not match the expected on-disk format.
	ErrFormatViolation = errors.New("format violation")

	// ErrOrderingViolation covers data that violates a required sort or
	// sequencing invariant (e.g. coordinates not sorted by hash, stages
	// run out of order).
	ErrOrderingViolation = errors.New("ordering violation")

	// ErrConfigViolation covers an invalid or inconsistent ImportParameter.
	ErrConfigViolation = errors.New("configuration violation")

	// ErrProvenanceViolation covers a stage whose required input files are
	// missing, or whose declared provided-temporary files are required by
	// no later stage.
	ErrProvenanceViolation = errors.New("provenance violation")

	// ErrDataAnomaly covers semantically invalid OSM input (e.g. a way
	// referencing a node id that was never seen, a relation with no
	// members) that the importer detects but does not attempt to repair.
	ErrDataAnomaly = errors.New("data anomaly")
)
