// Package optimizeareawayids implements the OptimizeAreaWayIds stage: after
// way merging has reassigned some way records to a surviving id, this stage
// builds the final OSM-id -> file-offset index over ways.dat. No later
// stage declares it as required: the spatial index builders and the routing
// graph stage scan ways.dat directly (step
// 7, "finalise identifier assignment").
package optimizeareawayids

import (
	"bufio"

	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawindex"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/wayway"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexFile = "wayidx.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:              "OptimizeAreaWayIds",
		Required:          []string{wayway.DataFile},
		ProvidedTemporary: []string{IndexFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	n, err := rawindex.BuildSorted(p.DataFile(wayway.DataFile), p.DataFile(IndexFile), decodeWayID)
	if err != nil {
		return err
	}
	prog.Report(progress.Snapshot{Stage: "OptimizeAreaWayIds", Step: "index", Processed: uint64(n), Total: uint64(n)})
	return nil
}

func decodeWayID(r *bufio.Reader) (int64, error) {
	wy, err := objdata.DecodeWay(r)
	if err != nil {
		return 0, err
	}
	return wy.OSMID, nil
}
