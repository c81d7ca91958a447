// Package optimizeareaslowzoom implements the OptimizeAreasLowZoom stage:
// the area counterpart of optimizewayslowzoom, simplifying each ring
// (outer and holes) with Douglas-Peucker per magnification level (the
// §2 step 9; original_source's GenOptimizeAreasLowZoom.cpp).
package optimizeareaslowzoom

import (
	"bufio"
	"bytes"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/simplify"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/mergeareas"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const DataFile = "areaopt.dat"

type Stage struct {
	MinMag      int
	MaxMag      int
	MaxWayCount int
}

func New(minMag, maxMag, maxWayCount int) Stage {
	return Stage{MinMag: minMag, MaxMag: maxMag, MaxWayCount: maxWayCount}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "OptimizeAreasLowZoom",
		Required: []string{mergeareas.DataFile},
		Provided: []string{DataFile},
	}
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	rr, err := binio.NewRecordReader(p.DataFile(mergeareas.DataFile))
	if err != nil {
		return err
	}
	areas := make([]objdata.Area, 0, rr.Count)
	for i := uint32(0); i < rr.Count; i++ {
		a, err := objdata.DecodeArea(rr.Reader())
		if err != nil {
			_ = rr.Close()
			return err
		}
		areas = append(areas, a)
	}
	if err := rr.Close(); err != nil {
		return err
	}

	skipSimplify := s.MaxWayCount > 0 && len(areas) > s.MaxWayCount

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

	for mag := minMag; mag <= maxMag; mag++ {
		epsilon := epsilonForMag(mag)

		var buf bytes.Buffer
		bw := bufio.NewWriter(&buf)
		if err := binio.PutUvarint(bw, uint64(len(areas))); err != nil {
			return err
		}
		for _, a := range areas {
			simplified := a
			if !skipSimplify {
				simplified.Outer = simplify.DouglasPeucker(a.Outer, epsilon)
				simplified.Holes = make([][]objdata.Point, len(a.Holes))
				for i, hole := range a.Holes {
					simplified.Holes[i] = simplify.DouglasPeucker(hole, epsilon)
				}
			}
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

		prog.Report(progress.Snapshot{Stage: "OptimizeAreasLowZoom", Step: "simplify", Processed: uint64(mag - minMag + 1), Total: uint64(maxMag - minMag + 1)})
	}

	return w.Close()
}

func epsilonForMag(mag int) float64 {
	base := 0.5
	for i := 0; i < mag; i++ {
		base /= 2
	}
	return base
}
