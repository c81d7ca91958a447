// Package mergeareadata implements the MergeAreaData stage: it concatenates
// the area records derived from multipolygon relations (relarea.dat) and
// from closed ways (wayarea.dat) into a single candidate area stream
// (step 5), ahead of the boundary-merging pass MergeAreas
// performs.
package mergeareadata

import (
	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/relareadata"
	"github.com/osmscout-go/mapimport/internal/stages/wayareadata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "areacandidate.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:              "MergeAreaData",
		Required:          []string{relareadata.DataFile, wayareadata.DataFile},
		ProvidedTemporary: []string{DataFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}

	var total uint64
	for _, src := range []string{relareadata.DataFile, wayareadata.DataFile} {
		rr, err := binio.NewRecordReader(p.DataFile(src))
		if err != nil {
			return err
		}
		for i := uint32(0); i < rr.Count; i++ {
			area, err := objdata.DecodeArea(rr.Reader())
			if err != nil {
				_ = rr.Close()
				return err
			}
			if err := area.Encode(w.Writer()); err != nil {
				_ = rr.Close()
				return err
			}
			w.Advance(1)
			total++
			prog.Report(progress.Snapshot{Stage: "MergeAreaData", Step: "merge", Processed: total})
		}
		if err := rr.Close(); err != nil {
			return err
		}
	}

	return w.Close()
}
