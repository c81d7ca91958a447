// Package typeinfo holds the OSM type registry: every feature/tag mapping
// rule loaded from the type definition file, addressed by small integer
// index rather than pointer so the import pipeline can hand the same
// TypeConfig to many goroutines without reference-counting or cycles (the
// "arena + integer index" approach called out in the project's design
// notes, replacing the original C++ implementation's shared_ptr graph).
package typeinfo

import "fmt"

// TypeID is the dense, zero-based index of a TypeInfo within a TypeConfig's
// arena. It is stable for the lifetime of one import run and is what gets
// persisted in every on-disk object record (never a name or pointer).
type TypeID uint16

// TypeInfo is one entry of the type hierarchy: a name, whether it can be
// realized as a node/way/area, and the feature flags relevant to
// classification (§4.2's way/area precedence rules).
type TypeInfo struct {
	ID   TypeID
	Name string

	CanBeNode     bool
	CanBeWay      bool
	CanBeArea     bool
	CanRoute      bool
	IsMultipolygon bool

	// PinWay marks a type that is always a way regardless of the
	// closed-ring rule (e.g. highway/barrier types that are legitimately
	// drawn as closed rings — a roundabout, a fenced loop — but must never
	// be reclassified as an area). Consulted by classifyWayOrArea.
	PinWay bool

	// IndexAsAddress/IndexAsLocation/IndexAsPOI mirror the original
	// per-type index membership flags consulted by the location and
	// text index stages.
	IndexAsAddress  bool
	IndexAsLocation bool
	IndexAsPOI      bool

	// OptimizeLowZoom marks types considered for the low-zoom
	// optimization stages.
	OptimizeLowZoom bool
}

// TypeConfig is the arena: a slice of TypeInfo addressed by TypeID, plus a
// name index for the (rarer) lookups that still need to go by name (parsing
// the type definition file, resolving relation tag overrides).
type TypeConfig struct {
	types  []TypeInfo
	byName map[string]TypeID
}

// NewTypeConfig builds an empty arena. Use Register to populate it, in the
// order the type definition file lists them — the assigned TypeID is that
// registration order, so it must stay consistent across an entire run
// (including resumed/partial runs per the format-version decision in
// DESIGN.md).
func NewTypeConfig() *TypeConfig {
	return &TypeConfig{byName: make(map[string]TypeID)}
}

// Register adds a new type and returns its assigned TypeID.
func (tc *TypeConfig) Register(info TypeInfo) TypeID {
	id := TypeID(len(tc.types))
	info.ID = id
	tc.types = append(tc.types, info)
	tc.byName[info.Name] = id
	return id
}

// TypeCount returns the number of registered types, used to size dense
// per-type statistics vectors (histograms indexed by TypeID rather than a
// map, matching the original's array-of-counts distribution vectors).
func (tc *TypeConfig) TypeCount() int { return len(tc.types) }

// ByID returns the TypeInfo for id. It panics on an out-of-range id since a
// valid TypeID is only ever handed out by Register or read back from a
// trusted on-disk file produced by this same arena.
func (tc *TypeConfig) ByID(id TypeID) TypeInfo {
	return tc.types[id]
}

// ByName looks up a type by its textual name (used only during type-file
// parsing and relation-tag resolution).
func (tc *TypeConfig) ByName(name string) (TypeID, bool) {
	id, ok := tc.byName[name]
	return id, ok
}

// MustByName is ByName but fails fast with a configuration violation; the
// type definition file is trusted input validated at load time.
func (tc *TypeConfig) MustByName(name string) TypeID {
	id, ok := tc.byName[name]
	if !ok {
		panic(fmt.Sprintf("typeinfo: unknown type %q", name))
	}
	return id
}

// All returns a copy-free iterator slice over the registered types, for
// stages that need to scan every type (e.g. computing per-type index
// levels).
func (tc *TypeConfig) All() []TypeInfo { return tc.types }
