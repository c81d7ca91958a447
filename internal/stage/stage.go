// Package stage defines the contract every import stage implements:
// Describe declares the files it requires and produces, and
// Import runs the stage.
package stage

import (
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// Descriptor declares a stage's file-provenance footprint. The orchestrator
// validates these sets against every other stage's before running anything:
// each required file must come from an earlier stage. It does not check that
// every provided-temporary file is required by some stage.
type Descriptor struct {
	Name string

	// Required is the set of files this stage reads; every one must be
	// provided, in any of the provided classes, by some earlier stage.
	Required []string

	// Provided is the set of files this stage always writes and that a
	// later stage (or the final database) depends on.
	Provided []string

	// ProvidedOptional is written only under certain parameter settings
	// (e.g. strictAreas, optimization steps); absence is not an error.
	ProvidedOptional []string

	// ProvidedTemporary is written for consumption by a later stage only,
	// and is a candidate for eco-mode reclamation once every consumer has
	// run.
	ProvidedTemporary []string

	// ProvidedDebugging is written only when debug output is requested
	// (e.g. the area-way index PNG renderer) and never required by any
	// other stage.
	ProvidedDebugging []string
}

// Stage is the contract every pipeline stage implements. Describe may be
// called with a nil Parameter during DAG validation (before any stage
// runs); implementations that vary their provided-optional set based on a
// parameter must treat a nil Parameter as "use the conservative default".
type Stage interface {
	Describe(p Parameter) Descriptor
	Import(tc *typeinfo.TypeConfig, p Parameter, prog progress.Sink) error
}

// Parameter is the minimal surface a stage needs from the importer's full
// configuration; it is satisfied by *config.ImportParameter without this
// package importing config.
type Parameter interface {
	DestDir() string
	DataFile(base string) string
	IsEco() bool
}
