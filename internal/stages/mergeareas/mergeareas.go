// Package mergeareas implements the MergeAreas stage: the final pass over
// the candidate area stream that would, in a complete implementation, merge
// area fragments split across tile or relation boundaries that in fact
// describe the same polygon. This implementation performs id-deduplication
// (keeping the last-seen record for a given OSM id; MergeAreaData writes
// relation-derived records first and way-derived records after them, so a
// way-derived record replaces a relation-derived one with the same id) and
// writes the final persistent areas.dat; true
// cross-boundary ring stitching is not implemented — see DESIGN.md.
package mergeareas

import (
	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/mergeareadata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "areas.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "MergeAreas",
		Required: []string{mergeareadata.DataFile},
		Provided: []string{DataFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	rr, err := binio.NewRecordReader(p.DataFile(mergeareadata.DataFile))
	if err != nil {
		return err
	}
	defer rr.Close()

	byID := make(map[int64]objdata.Area, rr.Count)
	order := make([]int64, 0, rr.Count)
	for i := uint32(0); i < rr.Count; i++ {
		area, err := objdata.DecodeArea(rr.Reader())
		if err != nil {
			return err
		}
		if _, seen := byID[area.OSMID]; !seen {
			order = append(order, area.OSMID)
		}
		byID[area.OSMID] = area
	}

	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}
	for idx, id := range order {
		area := byID[id]
		if err := area.Encode(w.Writer()); err != nil {
			return err
		}
		w.Advance(1)
		prog.Report(progress.Snapshot{Stage: "MergeAreas", Step: "write", Processed: uint64(idx + 1), Total: uint64(len(order))})
	}

	return w.Close()
}
