// Package areawayindex implements the AreaWayIndex stage: for
// each way type it selects the smallest index magnification whose per-cell
// fill statistics meet the configured thresholds, then emits a bitmap index
// mapping each filled cell to the file offsets of the ways whose bounding
// box centers there.
//
// When Debug is set, it additionally renders one PNG per type showing the
// filled-cell bitmap, using the fogleman/gg + golang/freetype stack the
// other example repos in the retrieval pack use for image generation —
// useful for visually sanity-checking level selection on a new extract
// without a full map-rendering pipeline.
package areawayindex

import (
	"bufio"
	"bytes"
	"fmt"
	"image/color"
	"sort"

	"github.com/fogleman/gg"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawindex"
	"github.com/osmscout-go/mapimport/internal/spatialindex"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/wayway"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexFile = "areaway.idx"

type Stage struct {
	Debug bool

	MaxLevel        int
	CellSizeAverage int
	CellSizeMax     int
}

func New(maxLevel, cellSizeAverage, cellSizeMax int, debug bool) Stage {
	return Stage{Debug: debug, MaxLevel: maxLevel, CellSizeAverage: cellSizeAverage, CellSizeMax: cellSizeMax}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:              "AreaWayIndex",
		Required:          []string{wayway.DataFile},
		Provided:          []string{IndexFile},
		ProvidedDebugging: []string{"areaway_debug_*.png"},
	}
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	byType := map[typeinfo.TypeID][]spatialindex.Entry{}

	err := rawindex.ScanWithOffset(p.DataFile(wayway.DataFile), func(r *bufio.Reader, offset uint64) error {
		wy, err := objdata.DecodeWay(r)
		if err != nil {
			return err
		}
		if len(wy.Points) == 0 {
			return nil
		}
		box := boundingBoxOf(wy.Points)
		byType[wy.Type] = append(byType[wy.Type], spatialindex.Entry{Type: wy.Type, Box: box, Offset: offset})
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
		maxLevel = 16
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
		level, counts := spatialindex.SelectLevel(byType[t], maxLevel, cellAvg, cellMax)

		var buf bytes.Buffer
		bw := bufio.NewWriter(&buf)
		if err := spatialindex.WriteBitmap(bw, level, counts); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		blocks[t] = buf.Bytes()

		if s.Debug {
			if err := renderDebugPNG(p.DataFile(fmt.Sprintf("areaway_debug_%d.png", t)), counts); err != nil {
				return err
			}
		}

		prog.Report(progress.Snapshot{Stage: "AreaWayIndex", Step: "select-level", Processed: uint64(idx + 1), Total: uint64(len(types))})
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

func boundingBoxOf(points []objdata.Point) geo.GeoBox {
	box := geo.GeoBox{}
	for _, pt := range points {
		c := geo.Coord{Lat: pt.Lat, Lon: pt.Lon}
		box = box.Merge(geo.NewGeoBox(c, c))
	}
	return box
}

// renderDebugPNG draws one filled rectangle per filled tile, scaled from the
// tile bounds into a fixed canvas, as a quick visual sanity check of
// level selection (not a real map renderer).
func renderDebugPNG(path string, counts map[spatialindex.TileKey][]spatialindex.Entry) error {
	const canvas = 512
	dc := gg.NewContext(canvas, canvas)
	dc.SetColor(color.White)
	dc.Clear()

	minX, minY, maxX, maxY := 0, 0, 1, 1
	first := true
	for k := range counts {
		if first {
			minX, maxX, minY, maxY = k.X, k.X, k.Y, k.Y
			first = false
			continue
		}
		if k.X < minX {
			minX = k.X
		}
		if k.X > maxX {
			maxX = k.X
		}
		if k.Y < minY {
			minY = k.Y
		}
		if k.Y > maxY {
			maxY = k.Y
		}
	}
	width := float64(maxX-minX+1)
	height := float64(maxY-minY+1)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dc.SetRGB(0.1, 0.4, 0.8)
	for k := range counts {
		x := float64(k.X-minX) / width * canvas
		y := float64(k.Y-minY) / height * canvas
		dc.DrawRectangle(x, y, canvas/width, canvas/height)
		dc.Fill()
	}

	return dc.SavePNG(path)
}
