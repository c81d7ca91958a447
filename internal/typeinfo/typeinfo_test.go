package typeinfo

import (
	"strings"
	"testing"
)

func TestRegisterAssignsDenseSequentialIDs(t *testing.T) {
	tc := NewTypeConfig()
	a := tc.Register(TypeInfo{Name: "highway_primary", CanBeWay: true})
	b := tc.Register(TypeInfo{Name: "building", CanBeArea: true})

	if a != 0 || b != 1 {
		t.Fatalf("expected dense IDs 0,1, got %d,%d", a, b)
	}
	if tc.TypeCount() != 2 {
		t.Fatalf("expected TypeCount 2, got %d", tc.TypeCount())
	}
	if got := tc.ByID(a).Name; got != "highway_primary" {
		t.Fatalf("ByID(0).Name = %q", got)
	}
	id, ok := tc.ByName("building")
	if !ok || id != b {
		t.Fatalf("ByName(building) = %d,%v want %d,true", id, ok, b)
	}
}

func TestLoadParsesTypeDefinitionFile(t *testing.T) {
	const src = `# comment
highway_primary 0 1 0 1 0 0 0 0 1 1
building        0 0 1 0 1 1 1 1 0 0
`
	tc, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tc.TypeCount() != 2 {
		t.Fatalf("expected 2 types, got %d", tc.TypeCount())
	}
	id, ok := tc.ByName("building")
	if !ok {
		t.Fatalf("expected building type to be registered")
	}
	info := tc.ByID(id)
	if !info.CanBeArea || !info.IsMultipolygon || !info.IndexAsAddress {
		t.Fatalf("unexpected flags for building: %+v", info)
	}
	if info.CanBeWay {
		t.Fatalf("building should not be way-capable per fixture")
	}
	if info.PinWay {
		t.Fatalf("building should not be pin-way per fixture")
	}

	highwayID, ok := tc.ByName("highway_primary")
	if !ok {
		t.Fatalf("expected highway_primary type to be registered")
	}
	if !tc.ByID(highwayID).PinWay {
		t.Fatalf("highway_primary should be pin-way per fixture")
	}
}

func TestLoadRejectsDuplicateType(t *testing.T) {
	const src = `highway_primary 1 1 0 1 0 0 0 0 0 1
highway_primary 1 1 0 1 0 0 0 0 0 1
`
	if _, err := Load(strings.NewReader(src)); err == nil {
		t.Fatalf("expected error for duplicate type")
	}
}

func TestLoadRejectsWrongFieldCount(t *testing.T) {
	const src = `highway_primary 1 1 0 1 0 0 0 0 0
`
	if _, err := Load(strings.NewReader(src)); err == nil {
		t.Fatalf("expected error for short type definition line")
	}
}
