// Package sortnodedata implements the SortNodeData stage: it rewrites
// nodes.dat in Z-order (Morton) hash order so that the area-node index
// builder's cell-fill statistics and offset lists reflect spatial locality
// (step 7, "spatially sort objects").
package sortnodedata

import (
	"sort"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/nodedata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "SortNodeData",
		Required: []string{nodedata.DataFile},
		Provided: []string{nodedata.DataFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	path := p.DataFile(nodedata.DataFile)

	rr, err := binio.NewRecordReader(path)
	if err != nil {
		return err
	}
	nodes := make([]objdata.Node, 0, rr.Count)
	for i := uint32(0); i < rr.Count; i++ {
		n, err := objdata.DecodeNode(rr.Reader())
		if err != nil {
			_ = rr.Close()
			return err
		}
		nodes = append(nodes, n)
	}
	if err := rr.Close(); err != nil {
		return err
	}

	sort.Slice(nodes, func(i, j int) bool {
		return geo.Coord{Lat: nodes[i].Point.Lat, Lon: nodes[i].Point.Lon}.Hash() <
			geo.Coord{Lat: nodes[j].Point.Lat, Lon: nodes[j].Point.Lon}.Hash()
	})

	w, err := binio.NewRecordWriter(path)
	if err != nil {
		return err
	}
	for i, n := range nodes {
		if err := n.Encode(w.Writer()); err != nil {
			return err
		}
		w.Advance(1)
		if i%4096 == 0 {
			prog.Report(progress.Snapshot{Stage: "SortNodeData", Step: "sort", Processed: uint64(i + 1), Total: uint64(len(nodes))})
		}
	}
	return w.Close()
}
