package config

import "testing"

func TestDefaultPassesValidateWithMinimalFields(t *testing.T) {
	p := Default()
	p.DestinationDirectory = "/tmp/out"
	p.Mapfiles = []string{"/tmp/planet.osm.pbf"}
	p.Typefile = "/tmp/map.types"

	if err := p.Validate(); err != nil {
		t.Fatalf("expected default config (with required fields set) to validate, got: %v", err)
	}
}

func TestValidateRejectsMissingDestination(t *testing.T) {
	p := Default()
	p.Mapfiles = []string{"a.osm.pbf"}
	p.Typefile = "map.types"

	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for missing destination directory")
	}
}

func TestValidateRejectsBackwardsStepRange(t *testing.T) {
	p := Default()
	p.DestinationDirectory = "/tmp/out"
	p.Mapfiles = []string{"a.osm.pbf"}
	p.Typefile = "map.types"
	p.StartStep = 5
	p.EndStep = 2

	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for end step before start step")
	}
}

func TestValidateRejectsEcoWithPartialStepRange(t *testing.T) {
	p := Default()
	p.DestinationDirectory = "/tmp/out"
	p.Mapfiles = []string{"a.osm.pbf"}
	p.Typefile = "map.types"
	p.StartStep = 3
	p.Eco = true

	if err := p.Validate(); err == nil {
		t.Fatalf("expected error for eco mode with a non-1 start step")
	}
}

func TestRouterDerivedFilenames(t *testing.T) {
	r := Router{VehicleMask: 1, FilenameBase: "router"}
	if r.DataFilename() != "router.dat" {
		t.Fatalf("DataFilename: got %q", r.DataFilename())
	}
	if r.VariantFilename() != "router2.dat" {
		t.Fatalf("VariantFilename: got %q", r.VariantFilename())
	}
	if r.IndexFilename() != "router.idx" {
		t.Fatalf("IndexFilename: got %q", r.IndexFilename())
	}
}

func TestDataFileJoinsDestinationDirectory(t *testing.T) {
	p := &ImportParameter{DestinationDirectory: "/var/data/"}
	if got := p.DataFile("nodes.dat"); got != "/var/data/nodes.dat" {
		t.Fatalf("DataFile: got %q", got)
	}
}
