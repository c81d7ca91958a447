// Package rawwayindex implements the RawWayIndex stage: a by-id offset
// index over rawways.dat so relation and merge stages can resolve a way
// member reference without scanning the whole file (step 4).
package rawwayindex

import (
	"bufio"

	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/rawindex"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexDat = "rawwayidx.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:              "RawWayIndex",
		Required:          []string{preprocess.RawWaysDat},
		ProvidedTemporary: []string{IndexDat},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	n, err := rawindex.Build(p.DataFile(preprocess.RawWaysDat), p.DataFile(IndexDat), decodeWayID)
	if err != nil {
		return err
	}
	prog.Report(progress.Snapshot{Stage: "RawWayIndex", Step: "build", Processed: uint64(n), Total: uint64(n)})
	return nil
}

// decodeWayID consumes a full RawWay record (the index must advance past
// the entire record, not just its id field) and returns its OSM id.
func decodeWayID(r *bufio.Reader) (int64, error) {
	wy, err := rawdata.DecodeRawWay(r)
	if err != nil {
		return 0, err
	}
	return wy.OSMID, nil
}
