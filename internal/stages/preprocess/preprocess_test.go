package preprocess

import (
	"testing"

	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

func buildTypeConfig(t *testing.T) (*typeinfo.TypeConfig, typeinfo.TypeID, typeinfo.TypeID) {
	t.Helper()
	tc := typeinfo.NewTypeConfig()
	highway := tc.Register(typeinfo.TypeInfo{Name: "highway_residential", CanBeWay: true, PinWay: true})
	building := tc.Register(typeinfo.TypeInfo{Name: "building", CanBeArea: true})
	return tc, highway, building
}

func TestClassifyWayOrAreaRejectsShortWay(t *testing.T) {
	tc, _, _ := buildTypeConfig(t)
	_, ok := classifyWayOrArea(tc, rawdata.RawWay{NodeRefs: []int64{1}})
	if ok {
		t.Fatalf("expected a way with fewer than 2 node refs to be rejected")
	}
}

func TestClassifyWayOrAreaClosedRingBecomesArea(t *testing.T) {
	tc, _, building := buildTypeConfig(t)
	isArea, ok := classifyWayOrArea(tc, rawdata.RawWay{
		Type:     building,
		NodeRefs: []int64{1, 2, 3, 1},
	})
	if !ok {
		t.Fatalf("expected way to be accepted")
	}
	if !isArea {
		t.Fatalf("expected a closed ring of 4 node refs (3 distinct nodes) to classify as area")
	}
}

func TestClassifyWayOrAreaThreeNodeRingStaysWay(t *testing.T) {
	// A "closed ring" of exactly 3 node refs (2 distinct nodes, e.g.
	// [1,2,1]) has length 3, which does not satisfy len > 3, so it never
	// reaches area classification regardless of type.
	tc, _, building := buildTypeConfig(t)
	isArea, ok := classifyWayOrArea(tc, rawdata.RawWay{
		Type:     building,
		NodeRefs: []int64{1, 2, 1},
	})
	if !ok {
		t.Fatalf("expected way to be accepted")
	}
	if isArea {
		t.Fatalf("a 3-entry ring must not classify as area")
	}
}

func TestClassifyWayOrAreaPinWayStaysWayEvenWhenClosed(t *testing.T) {
	tc, highway, _ := buildTypeConfig(t)
	isArea, ok := classifyWayOrArea(tc, rawdata.RawWay{
		Type:     highway,
		Tags:     map[string]string{"highway": "residential"},
		NodeRefs: []int64{1, 2, 3, 4, 1},
	})
	if !ok {
		t.Fatalf("expected way to be accepted")
	}
	if isArea {
		t.Fatalf("a pin-way type must stay a way even when its ring is closed")
	}
}

func TestClassifyWayOrAreaRoundaboutStaysWay(t *testing.T) {
	tc, _, building := buildTypeConfig(t)
	isArea, ok := classifyWayOrArea(tc, rawdata.RawWay{
		Type:     building, // deliberately not the pin-way type
		Tags:     map[string]string{"junction": "roundabout"},
		NodeRefs: []int64{1, 2, 3, 4, 1},
	})
	if !ok {
		t.Fatalf("expected way to be accepted")
	}
	if isArea {
		t.Fatalf("junction=roundabout must always stay a way")
	}
}

func TestClassifyWayOrAreaExplicitAreaNoOverridesClosedRing(t *testing.T) {
	tc, _, building := buildTypeConfig(t)
	for _, v := range []string{"no", "false", "0", "NO"} {
		isArea, ok := classifyWayOrArea(tc, rawdata.RawWay{
			Type:     building,
			Tags:     map[string]string{"area": v},
			NodeRefs: []int64{1, 2, 3, 4, 1},
		})
		if !ok {
			t.Fatalf("expected way to be accepted for area=%s", v)
		}
		if isArea {
			t.Fatalf("explicit area=%s must force way classification", v)
		}
	}
}

func TestClassifyWayOrAreaCoastlineClosedRingBecomesArea(t *testing.T) {
	tc, _, building := buildTypeConfig(t)
	isArea, ok := classifyWayOrArea(tc, rawdata.RawWay{
		Type:     building,
		Tags:     map[string]string{"natural": "coastline"},
		NodeRefs: []int64{1, 2, 3, 4, 1},
	})
	if !ok {
		t.Fatalf("expected way to be accepted")
	}
	if !isArea {
		t.Fatalf("a closed coastline ring of more than 3 nodes must classify as area")
	}
}

func TestClassifyWayOrAreaOpenWayStaysWay(t *testing.T) {
	tc, _, building := buildTypeConfig(t)
	isArea, ok := classifyWayOrArea(tc, rawdata.RawWay{
		Type:     building,
		NodeRefs: []int64{1, 2, 3, 4, 5},
	})
	if !ok {
		t.Fatalf("expected way to be accepted")
	}
	if isArea {
		t.Fatalf("an open way must never classify as area")
	}
}

func TestClassifyBlockDropsUnresolvableWaysAndSetsIsArea(t *testing.T) {
	tc, _, building := buildTypeConfig(t)
	b := Block{
		Ways: []rawdata.RawWay{
			{OSMID: 1, Type: building, NodeRefs: []int64{1}},                // dropped: <2 refs
			{OSMID: 2, Type: building, NodeRefs: []int64{10, 20, 30, 10}},   // kept: area
			{OSMID: 3, Type: building, NodeRefs: []int64{10, 20, 30, 40}},   // kept: way (open)
		},
	}
	out := classifyBlock(tc, b)
	if len(out.Ways) != 2 {
		t.Fatalf("expected 2 surviving ways, got %d", len(out.Ways))
	}
	if out.Ways[0].OSMID != 2 || !out.Ways[0].IsArea {
		t.Fatalf("expected way 2 to survive and classify as area: %+v", out.Ways[0])
	}
	if out.Ways[1].OSMID != 3 || out.Ways[1].IsArea {
		t.Fatalf("expected way 3 to survive and classify as way: %+v", out.Ways[1])
	}
}
