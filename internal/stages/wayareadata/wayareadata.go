// Package wayareadata implements the WayAreaData stage: it scans raw ways,
// selects those the Preprocess stage already classified as areas
// (preprocess.classifyWayOrArea decides RawWay.IsArea exactly once, so this
// stage trusts that bit rather than re-deriving it), resolves their node
// references to coordinates, and emits area records with the duplicate
// closing vertex stripped.
package wayareadata

import (
	"context"
	"fmt"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/coordstore"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/observability"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/coorddata"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "wayarea.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:              "WayAreaData",
		Required:          []string{preprocess.RawWaysDat, coorddata.CoordDat, coorddata.CoordIndexDat},
		ProvidedTemporary: []string{DataFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	coords, err := coordstore.Open(p.DataFile(coorddata.CoordDat), p.DataFile(coorddata.CoordIndexDat))
	if err != nil {
		return err
	}
	defer coords.Close()

	rr, err := binio.NewRecordReader(p.DataFile(preprocess.RawWaysDat))
	if err != nil {
		return err
	}
	defer rr.Close()

	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}

	var processed uint64
	var sampleErrors []string
	droppedRings := 0
	for i := uint32(0); i < rr.Count; i++ {
		wy, err := rawdata.DecodeRawWay(rr.Reader())
		if err != nil {
			return err
		}
		processed++
		if !wy.IsArea {
			continue // way-object: handled by wayway, not this stage
		}

		refs := wy.NodeRefs
		if len(refs) > 1 && refs[0] == refs[len(refs)-1] {
			refs = refs[:len(refs)-1] // strip duplicate closing id
		}

		resolved, err := coords.BulkLookup(refs)
		if err != nil {
			return err
		}
		pts := make([]objdata.Point, 0, len(refs))
		for _, ref := range refs {
			if c, ok := resolved[ref]; ok {
				pts = append(pts, objdata.Point{Lat: c.Lat, Lon: c.Lon})
			}
		}
		if len(pts) < 3 {
			droppedRings++
			if len(sampleErrors) < 3 {
				sampleErrors = append(sampleErrors, fmt.Sprintf("way %d: ring resolved to %d points", wy.OSMID, len(pts)))
			}
			continue
		}

		area := objdata.Area{OSMID: wy.OSMID, Type: wy.Type, Tags: wy.Tags, Outer: pts}
		if err := area.Encode(w.Writer()); err != nil {
			return err
		}
		w.Advance(1)

		prog.Report(progress.Snapshot{Stage: "WayAreaData", Step: "resolve", Processed: processed, Total: uint64(rr.Count)})
	}

	if droppedRings > 0 {
		observability.ReportStageIssues(context.Background(), nil, "WayAreaData",
			map[string]int{"unresolvable_ring": droppedRings}, sampleErrors, nil)
	}

	return w.Close()
}
