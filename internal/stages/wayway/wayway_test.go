package wayway

import (
	"path/filepath"
	"testing"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

func writeRawWays(t *testing.T, ways []rawdata.RawWay) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rawways.dat")
	w, err := binio.NewRecordWriter(path)
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	for _, wy := range ways {
		if err := wy.Encode(w.Writer()); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		w.Advance(1)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestGroupWaysByTypeSkipsAreaClassifiedWays(t *testing.T) {
	path := writeRawWays(t, []rawdata.RawWay{
		{OSMID: 1, Type: typeinfo.TypeID(0), NodeRefs: []int64{1, 2, 3}, IsArea: false},
		{OSMID: 2, Type: typeinfo.TypeID(0), NodeRefs: []int64{4, 5, 6, 4}, IsArea: true},
	})

	groups, err := groupWaysByType(path)
	if err != nil {
		t.Fatalf("groupWaysByType: %v", err)
	}

	ways := groups[typeinfo.TypeID(0)]
	if len(ways) != 1 {
		t.Fatalf("expected exactly 1 way-classified raw way to remain, got %d", len(ways))
	}
	if ways[0].OSMID != 1 {
		t.Fatalf("expected surviving way to be OSMID 1, got %d", ways[0].OSMID)
	}
}
