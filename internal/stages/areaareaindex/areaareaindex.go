// Package areaareaindex implements the AreaAreaIndex stage: the area
// counterpart of areawayindex and areanodeindex, built over the final
// areas.dat using the same shared internal/spatialindex level-selection and
// bitmap-layout algorithm (step 8, §4.4's "representative of the
// spatial-index stages" note).
package areaareaindex

import (
	"bufio"
	"bytes"
	"sort"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawindex"
	"github.com/osmscout-go/mapimport/internal/spatialindex"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/mergeareas"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexFile = "areaarea.idx"

type Stage struct {
	MaxMag          int
	CellSizeAverage int
	CellSizeMax     int
}

func New(maxMag, cellSizeAverage, cellSizeMax int) Stage {
	return Stage{MaxMag: maxMag, CellSizeAverage: cellSizeAverage, CellSizeMax: cellSizeMax}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "AreaAreaIndex",
		Required: []string{mergeareas.DataFile},
		Provided: []string{IndexFile},
	}
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	byType := map[typeinfo.TypeID][]spatialindex.Entry{}

	err := rawindex.ScanWithOffset(p.DataFile(mergeareas.DataFile), func(r *bufio.Reader, offset uint64) error {
		a, err := objdata.DecodeArea(r)
		if err != nil {
			return err
		}
		box := boundingBoxOfRings(append([][]objdata.Point{a.Outer}, a.Holes...))
		if !box.Valid() {
			return nil
		}
		byType[a.Type] = append(byType[a.Type], spatialindex.Entry{Type: a.Type, Box: box, Offset: offset})
		return nil
	})
	if err != nil {
		return err
	}

	types := make([]typeinfo.TypeID, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	maxMag := s.MaxMag
	if maxMag == 0 {
		maxMag = 17
	}
	cellAvg, cellMax := s.CellSizeAverage, s.CellSizeMax
	if cellAvg == 0 {
		cellAvg = 64
	}
	if cellMax == 0 {
		cellMax = 100
	}

	blocks := make(map[typeinfo.TypeID][]byte, len(types))
	for idx, t := range types {
		level, counts := spatialindex.SelectLevel(byType[t], maxMag, cellAvg, cellMax)

		var buf bytes.Buffer
		bw := bufio.NewWriter(&buf)
		if err := spatialindex.WriteBitmap(bw, level, counts); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		blocks[t] = buf.Bytes()

		prog.Report(progress.Snapshot{Stage: "AreaAreaIndex", Step: "select-level", Processed: uint64(idx + 1), Total: uint64(len(types))})
	}

	w, err := binio.NewRecordWriter(p.DataFile(IndexFile))
	if err != nil {
		return err
	}
	if err := binio.PutUvarint(w.Writer(), uint64(len(types))); err != nil {
		return err
	}
	for _, t := range types {
		block := blocks[t]
		if err := binio.PutUvarint(w.Writer(), uint64(t)); err != nil {
			return err
		}
		if err := binio.PutUvarint(w.Writer(), uint64(len(block))); err != nil {
			return err
		}
		if _, err := w.Writer().Write(block); err != nil {
			return err
		}
		w.Advance(1)
	}
	return w.Close()
}

func boundingBoxOfRings(rings [][]objdata.Point) geo.GeoBox {
	box := geo.GeoBox{}
	for _, ring := range rings {
		for _, pt := range ring {
			c := geo.Coord{Lat: pt.Lat, Lon: pt.Lon}
			box = box.Merge(geo.NewGeoBox(c, c))
		}
	}
	return box
}
