// Package waterindex implements the WaterIndex stage: a land/water/coast
// tile classification built from the coastline ways preprocess extracted
// into rawcoastline.dat (step 8's WaterIndex, generalized per
// §4.4's "representative of the spatial-index stages" note).
//
// Level maxMag is classified directly against coastline segments; every
// coarser level down to minMag is derived from it by OR-reducing groups of
// child tiles, the same coarsening direction libosmscout's WaterIndex.cpp
// uses (the fine level is ground truth, coarser levels are a cheap summary
// for early query rejection). This implementation does not perform the
// original's interior flood-fill to disambiguate land from open water for
// tiles with no coastline crossing; those default to AssumeLand (or water
// if AssumeLand is false) — a simplification recorded in DESIGN.md.
package waterindex

import (
	"bufio"
	"math"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/coorddata"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"

	"github.com/osmscout-go/mapimport/internal/coordstore"
)

const IndexFile = "water.idx"

// TileState matches libosmscout's GroundTile::Type ordering: unknown tiles
// default to Land or Water per AssumeLand, Coast tiles touch a coastline
// segment.
type TileState uint8

const (
	StateUnknown TileState = iota
	StateLand
	StateWater
	StateCoast
)

type Stage struct {
	MinMag     int
	MaxMag     int
	AssumeLand bool
}

func New(minMag, maxMag int, assumeLand bool) Stage {
	return Stage{MinMag: minMag, MaxMag: maxMag, AssumeLand: assumeLand}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "WaterIndex",
		Required: []string{preprocess.RawCoastlineDat, coorddata.CoordDat, coorddata.CoordIndexDat},
		Provided: []string{IndexFile},
	}
}

type segment struct {
	lat1, lon1, lat2, lon2 float64
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	coords, err := coordstore.Open(p.DataFile(coorddata.CoordDat), p.DataFile(coorddata.CoordIndexDat))
	if err != nil {
		return err
	}
	defer coords.Close()

	rr, err := binio.NewRecordReader(p.DataFile(preprocess.RawCoastlineDat))
	if err != nil {
		return err
	}
	defer rr.Close()

	var segments []segment
	for i := uint32(0); i < rr.Count; i++ {
		wy, err := rawdata.DecodeRawWay(rr.Reader())
		if err != nil {
			return err
		}
		ids, err := coords.BulkLookup(wy.NodeRefs)
		if err != nil {
			return err
		}
		for j := 0; j+1 < len(ids); j++ {
			a, aok := ids[wy.NodeRefs[j]]
			b, bok := ids[wy.NodeRefs[j+1]]
			if !aok || !bok {
				continue // data anomaly: coastline segment references an unresolved node
			}
			segments = append(segments, segment{a.Lat, a.Lon, b.Lat, b.Lon})
		}
		prog.Report(progress.Snapshot{Stage: "WaterIndex", Step: "load-coastline", Processed: uint64(i + 1), Total: uint64(rr.Count)})
	}

	maxMag := s.MaxMag
	if maxMag == 0 {
		maxMag = 14
	}
	minMag := s.MinMag

	w, err := binio.NewRecordWriter(p.DataFile(IndexFile))
	if err != nil {
		return err
	}

	fineStates := classifyLevel(segments, maxMag, s.AssumeLand)
	if err := writeLevel(w.Writer(), maxMag, fineStates); err != nil {
		return err
	}
	w.Advance(1)

	cur := fineStates
	for lvl := maxMag - 1; lvl >= minMag; lvl-- {
		cur = coarsen(cur)
		if err := writeLevel(w.Writer(), lvl, cur); err != nil {
			return err
		}
		w.Advance(1)
		prog.Report(progress.Snapshot{Stage: "WaterIndex", Step: "coarsen", Processed: uint64(maxMag - lvl), Total: uint64(maxMag - minMag + 1)})
	}

	return w.Close()
}

// classifyLevel builds a width x height grid of tile states at the given
// magnification: any tile holding a coastline segment's endpoint, or lying
// on a straight interpolated scan between its two endpoints, is Coast;
// everything else defaults per assumeLand.
func classifyLevel(segments []segment, mag int, assumeLand bool) [][]TileState {
	cells := int(math.Pow(2, float64(mag)))
	if cells < 1 {
		cells = 1
	}
	grid := make([][]TileState, cells)
	fill := StateLand
	if !assumeLand {
		fill = StateWater
	}
	for y := range grid {
		grid[y] = make([]TileState, cells)
		for x := range grid[y] {
			grid[y][x] = fill
		}
	}

	tileAt := func(lat, lon float64) (int, int) {
		x := int((lon + 180.0) / 360.0 * float64(cells))
		y := int((lat + 90.0) / 180.0 * float64(cells))
		if x < 0 {
			x = 0
		}
		if x >= cells {
			x = cells - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= cells {
			y = cells - 1
		}
		return x, y
	}

	for _, seg := range segments {
		x1, y1 := tileAt(seg.lat1, seg.lon1)
		x2, y2 := tileAt(seg.lat2, seg.lon2)
		grid[y1][x1] = StateCoast
		grid[y2][x2] = StateCoast
		// Mark intermediate tiles on a straight scan between the two
		// endpoints so long segments don't skip tiles they cross.
		steps := abs(x2-x1) + abs(y2-y1)
		for i := 1; i < steps; i++ {
			t := float64(i) / float64(steps)
			mx := int(float64(x1) + t*float64(x2-x1))
			my := int(float64(y1) + t*float64(y2-y1))
			if mx >= 0 && mx < cells && my >= 0 && my < cells {
				grid[my][mx] = StateCoast
			}
		}
	}
	return grid
}

// coarsen halves a grid's resolution: a parent tile is Coast if any child is
// Coast, else Water if any child is Water, else Land.
func coarsen(fine [][]TileState) [][]TileState {
	childCells := len(fine)
	parentCells := childCells / 2
	if parentCells < 1 {
		parentCells = 1
	}
	coarse := make([][]TileState, parentCells)
	for y := range coarse {
		coarse[y] = make([]TileState, parentCells)
		for x := range coarse[y] {
			seenWater := false
			seenCoast := false
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					cy, cx := y*2+dy, x*2+dx
					if cy >= childCells || cx >= childCells {
						continue
					}
					switch fine[cy][cx] {
					case StateCoast:
						seenCoast = true
					case StateWater:
						seenWater = true
					}
				}
			}
			switch {
			case seenCoast:
				coarse[y][x] = StateCoast
			case seenWater:
				coarse[y][x] = StateWater
			default:
				coarse[y][x] = StateLand
			}
		}
	}
	return coarse
}

func writeLevel(w *bufio.Writer, level int, grid [][]TileState) error {
	if err := binio.PutUvarint(w, uint64(level)); err != nil {
		return err
	}
	cells := len(grid)
	if err := binio.PutUvarint(w, uint64(cells)); err != nil {
		return err
	}
	// Two bits per tile, row-major, packed 4 tiles per byte.
	packed := make([]byte, (cells*cells*2+7)/8)
	idx := 0
	for y := 0; y < cells; y++ {
		for x := 0; x < cells; x++ {
			v := byte(grid[y][x])
			bitOff := uint(idx * 2)
			packed[bitOff/8] |= v << (bitOff % 8)
			idx++
		}
	}
	if err := binio.PutUvarint(w, uint64(len(packed))); err != nil {
		return err
	}
	_, err := w.Write(packed)
	return err
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
