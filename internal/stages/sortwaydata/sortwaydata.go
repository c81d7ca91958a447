// Package sortwaydata implements the SortWayData stage: it rewrites
// ways.dat in Z-order hash order (keyed by each way's first point), the way
// counterpart of sortnodedata (step 7).
package sortwaydata

import (
	"sort"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/wayway"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "SortWayData",
		Required: []string{wayway.DataFile},
		Provided: []string{wayway.DataFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	path := p.DataFile(wayway.DataFile)

	rr, err := binio.NewRecordReader(path)
	if err != nil {
		return err
	}
	ways := make([]objdata.Way, 0, rr.Count)
	for i := uint32(0); i < rr.Count; i++ {
		wy, err := objdata.DecodeWay(rr.Reader())
		if err != nil {
			_ = rr.Close()
			return err
		}
		ways = append(ways, wy)
	}
	if err := rr.Close(); err != nil {
		return err
	}

	hashOf := func(wy objdata.Way) uint64 {
		if len(wy.Points) == 0 {
			return 0
		}
		return geo.Coord{Lat: wy.Points[0].Lat, Lon: wy.Points[0].Lon}.Hash()
	}
	sort.Slice(ways, func(i, j int) bool { return hashOf(ways[i]) < hashOf(ways[j]) })

	w, err := binio.NewRecordWriter(path)
	if err != nil {
		return err
	}
	for i, wy := range ways {
		if err := wy.Encode(w.Writer()); err != nil {
			return err
		}
		w.Advance(1)
		if i%4096 == 0 {
			prog.Report(progress.Snapshot{Stage: "SortWayData", Step: "sort", Processed: uint64(i + 1), Total: uint64(len(ways))})
		}
	}
	return w.Close()
}
