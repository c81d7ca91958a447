package rawdata

import (
	"bufio"
	"bytes"
	"math"
	"testing"
)

func TestRawCoordEncodeDecodeRoundTrip(t *testing.T) {
	cases := []RawCoord{
		{OSMID: 1, Lat: 51.5074, Lon: -0.1278},
		{OSMID: -42, Lat: -33.8688, Lon: 151.2093},
		{OSMID: 999999999, Lat: 0, Lon: 0},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		if err := c.Encode(w); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
		got, err := DecodeRawCoord(bufio.NewReader(&buf))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.OSMID != c.OSMID {
			t.Fatalf("OSMID: want %d got %d", c.OSMID, got.OSMID)
		}
		if math.Abs(got.Lat-c.Lat) > 1e-6 || math.Abs(got.Lon-c.Lon) > 1e-6 {
			t.Fatalf("coord mismatch: want (%v,%v) got (%v,%v)", c.Lat, c.Lon, got.Lat, got.Lon)
		}
	}
}

func TestIsTurnRestriction(t *testing.T) {
	r := RawRelation{Tags: map[string]string{"type": "restriction", "restriction": "no_left_turn"}}
	if !r.IsTurnRestriction() {
		t.Fatalf("expected turn restriction to be detected")
	}

	r2 := RawRelation{Tags: map[string]string{"type": "restriction", "restriction:hgv": "no_entry"}}
	if !r2.IsTurnRestriction() {
		t.Fatalf("expected vehicle-specific restriction to be detected")
	}

	r3 := RawRelation{Tags: map[string]string{"type": "multipolygon"}}
	if r3.IsTurnRestriction() {
		t.Fatalf("multipolygon must not be classified as a turn restriction")
	}
}

func TestIsMultipolygon(t *testing.T) {
	r := RawRelation{Tags: map[string]string{"type": "multipolygon"}}
	if !r.IsMultipolygon() {
		t.Fatalf("expected multipolygon detection")
	}
	r2 := RawRelation{Tags: map[string]string{"type": "boundary"}}
	if !r2.IsMultipolygon() {
		t.Fatalf("expected boundary relation to count as multipolygon-like")
	}
	r3 := RawRelation{Tags: map[string]string{"type": "restriction"}}
	if r3.IsMultipolygon() {
		t.Fatalf("restriction relation must not be classified as multipolygon")
	}
}
