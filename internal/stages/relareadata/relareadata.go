// Package relareadata implements the RelAreaData stage: it scans the raw
// relations preprocess classified as multipolygon-capable (step
//5) and resolves each into an area record with an outer ring and zero or
// more hole rings, looking member ways up through the RawWayIndex and their
// node references up through the coordinate store.
//
// Simplification: a multipolygon relation may in principle assemble its
// outer ring from several "outer"-role way fragments that must be
// stitched end-to-end. This implementation takes the first outer member
// (and first inner member per hole) directly, which is correct for the
// common single-way-per-ring case but does not perform ring assembly
// across multiple fragments.
package relareadata

import (
	"bufio"
	"context"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/coordstore"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/observability"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/rawindex"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/coorddata"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/stages/rawwayindex"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "relarea.dat"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name: "RelAreaData",
		Required: []string{
			preprocess.RawRelsDat, rawwayindex.IndexDat, preprocess.RawWaysDat,
			coorddata.CoordDat, coorddata.CoordIndexDat,
		},
		ProvidedTemporary: []string{DataFile},
	}
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	wayIdx, err := rawindex.Open(p.DataFile(preprocess.RawWaysDat), p.DataFile(rawwayindex.IndexDat))
	if err != nil {
		return err
	}
	defer wayIdx.Close()

	coords, err := coordstore.Open(p.DataFile(coorddata.CoordDat), p.DataFile(coorddata.CoordIndexDat))
	if err != nil {
		return err
	}
	defer coords.Close()

	rr, err := binio.NewRecordReader(p.DataFile(preprocess.RawRelsDat))
	if err != nil {
		return err
	}
	defer rr.Close()

	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}

	resolveMember := func(wayID int64) ([]objdata.Point, error) {
		var wy rawdata.RawWay
		found, err := wayIdx.Decode(wayID, func(r *bufio.Reader) error {
			decoded, derr := rawdata.DecodeRawWay(r)
			wy = decoded
			return derr
		})
		if err != nil || !found {
			return nil, err
		}
		resolved, err := coords.BulkLookup(wy.NodeRefs)
		if err != nil {
			return nil, err
		}
		pts := make([]objdata.Point, 0, len(wy.NodeRefs))
		for _, ref := range wy.NodeRefs {
			if c, ok := resolved[ref]; ok {
				pts = append(pts, objdata.Point{Lat: c.Lat, Lon: c.Lon})
			}
		}
		return pts, nil
	}

	var processed uint64
	missingOuter := 0
	for i := uint32(0); i < rr.Count; i++ {
		rel, err := rawdata.DecodeRawRelation(rr.Reader())
		if err != nil {
			return err
		}
		processed++
		if !rel.IsMultipolygon() {
			continue
		}

		var outer []objdata.Point
		var holes [][]objdata.Point
		for _, m := range rel.Members {
			if m.Type != rawdata.MemberWay {
				continue
			}
			pts, err := resolveMember(m.ID)
			if err != nil {
				return err
			}
			if len(pts) == 0 {
				continue
			}
			switch m.Role {
			case "inner":
				holes = append(holes, pts)
			default: // "outer" or unspecified role defaults to outer
				if outer == nil {
					outer = pts
				}
			}
		}
		if len(outer) == 0 {
			// Data anomaly: multipolygon with no resolvable outer ring.
			// Counted and reported after the scan as a per-record
			// warning, not fatal.
			missingOuter++
			continue
		}

		area := objdata.Area{OSMID: rel.OSMID, Type: rel.Type, Tags: rel.Tags, Outer: outer, Holes: holes}
		if err := area.Encode(w.Writer()); err != nil {
			return err
		}
		w.Advance(1)

		prog.Report(progress.Snapshot{Stage: "RelAreaData", Step: "resolve", Processed: processed, Total: uint64(rr.Count)})
	}

	if missingOuter > 0 {
		observability.ReportStageIssues(context.Background(), nil, "RelAreaData",
			map[string]int{"unresolvable_outer_ring": missingOuter}, nil, nil)
	}

	return w.Close()
}
