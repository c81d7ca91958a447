// Package areanodeindex implements the AreaNodeIndex stage: the node
// counterpart of areawayindex, reusing the shared internal/spatialindex
// level-selection and bitmap-layout algorithm over nodes.dat instead of
// ways.dat (step 8, generalized per §4.4's "representative of the
// spatial-index stages" note).
package areanodeindex

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
	"github.com/osmscout-go/mapimport/internal/stages/nodedata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexFile = "areanode.idx"

type Stage struct {
	MaxLevel        int
	CellSizeAverage int
	CellSizeMax     int
	MinFillRate     float64
}

func New(maxLevel, cellSizeAverage, cellSizeMax int, minFillRate float64) Stage {
	return Stage{MaxLevel: maxLevel, CellSizeAverage: cellSizeAverage, CellSizeMax: cellSizeMax, MinFillRate: minFillRate}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "AreaNodeIndex",
		Required: []string{nodedata.DataFile},
		Provided: []string{IndexFile},
	}
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	byType := map[typeinfo.TypeID][]spatialindex.Entry{}

	err := rawindex.ScanWithOffset(p.DataFile(nodedata.DataFile), func(r *bufio.Reader, offset uint64) error {
		n, err := objdata.DecodeNode(r)
		if err != nil {
			return err
		}
		c := geo.Coord{Lat: n.Point.Lat, Lon: n.Point.Lon}
		box := geo.NewGeoBox(c, c)
		byType[n.Type] = append(byType[n.Type], spatialindex.Entry{Type: n.Type, Box: box, Offset: offset})
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

	maxLevel := s.MaxLevel
	if maxLevel == 0 {
		maxLevel = 10
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
		entries := byType[t]
		level, counts := spatialindex.SelectLevel(entries, maxLevel, cellAvg, cellMax)

		// AreaNodeIndexMinFillRate: if the chosen level's
		// occupancy (filled cells / total cells possible at that level)
		// falls below the configured minimum, fall back to level 0 — a
		// single dense bucket beats a sparse bitmap nobody benefits from.
		if s.MinFillRate > 0 && level > 0 {
			cells := 1 << uint(level)
			total := float64(cells) * float64(cells)
			if float64(len(counts))/total < s.MinFillRate {
				level = 0
				counts = bucketAtZero(entries)
			}
		}

		var buf bytes.Buffer
		bw := bufio.NewWriter(&buf)
		if err := spatialindex.WriteBitmap(bw, level, counts); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		blocks[t] = buf.Bytes()

		prog.Report(progress.Snapshot{Stage: "AreaNodeIndex", Step: "select-level", Processed: uint64(idx + 1), Total: uint64(len(types))})
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

func bucketAtZero(entries []spatialindex.Entry) map[spatialindex.TileKey][]spatialindex.Entry {
	_, counts := spatialindex.SelectLevel(entries, 0, 1<<30, 1<<30)
	return counts
}
