// Package optimizewayslowzoom implements the OptimizeWaysLowZoom stage: for
// each magnification between OptimizationMinMag and OptimizationMaxMag it
// writes a Douglas-Peucker-simplified copy of every way, so low-zoom
// rendering never has to load and simplify full-resolution geometry on the
// fly (step 9; original_source's
// GenOptimizeWaysLowZoom.cpp/TransPolygon::OptimizeMethod).
package optimizewayslowzoom

import (
	"bufio"
	"bytes"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/simplify"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/wayway"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "wayopt.dat"

type Stage struct {
	MinMag      int
	MaxMag      int
	MaxWayCount int
	CellSizeAvg int
	CellSizeMax int
}

func New(minMag, maxMag, maxWayCount, cellSizeAvg, cellSizeMax int) Stage {
	return Stage{MinMag: minMag, MaxMag: maxMag, MaxWayCount: maxWayCount, CellSizeAvg: cellSizeAvg, CellSizeMax: cellSizeMax}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "OptimizeWaysLowZoom",
		Required: []string{wayway.DataFile},
		Provided: []string{DataFile},
	}
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	rr, err := binio.NewRecordReader(p.DataFile(wayway.DataFile))
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

	if s.MaxWayCount > 0 && len(ways) > s.MaxWayCount {
		// optimization_max_way_count guards against spending
		// low-zoom-optimization effort on an extract too large for it to
		// pay off; beyond the cap this stage still runs (every way still
		// needs an entry at every level so lookups stay uniform) but skips
		// simplification, writing full-resolution geometry through instead.
		prog.Report(progress.Snapshot{Stage: "OptimizeWaysLowZoom", Step: "skip-simplify", Processed: uint64(len(ways)), Total: uint64(len(ways))})
	}

	maxMag := s.MaxMag
	minMag := s.MinMag
	if maxMag == 0 && minMag == 0 {
		maxMag, minMag = 10, 0
	}

	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}
	if err := binio.PutUvarint(w.Writer(), uint64(maxMag-minMag+1)); err != nil {
		return err
	}

	skipSimplify := s.MaxWayCount > 0 && len(ways) > s.MaxWayCount
	for mag := minMag; mag <= maxMag; mag++ {
		epsilon := epsilonForMag(mag)

		var buf bytes.Buffer
		bw := bufio.NewWriter(&buf)
		if err := binio.PutUvarint(bw, uint64(len(ways))); err != nil {
			return err
		}
		for _, wy := range ways {
			pts := wy.Points
			if !skipSimplify {
				pts = simplify.DouglasPeucker(pts, epsilon)
			}
			simplified := objdata.Way{OSMID: wy.OSMID, Type: wy.Type, Tags: wy.Tags, Points: pts, IsArea: wy.IsArea}
			if err := simplified.Encode(bw); err != nil {
				return err
			}
		}
		if err := bw.Flush(); err != nil {
			return err
		}

		if err := binio.PutUvarint(w.Writer(), uint64(mag)); err != nil {
			return err
		}
		if err := binio.PutUvarint(w.Writer(), uint64(buf.Len())); err != nil {
			return err
		}
		if _, err := w.Writer().Write(buf.Bytes()); err != nil {
			return err
		}
		w.Advance(1)

		prog.Report(progress.Snapshot{Stage: "OptimizeWaysLowZoom", Step: "simplify", Processed: uint64(mag - minMag + 1), Total: uint64(maxMag - minMag + 1)})
	}

	return w.Close()
}

// epsilonForMag scales simplification tolerance inversely with
// magnification: coarser (lower) magnifications tolerate coarser geometry.
func epsilonForMag(mag int) float64 {
	base := 0.5
	for i := 0; i < mag; i++ {
		base /= 2
	}
	return base
}
