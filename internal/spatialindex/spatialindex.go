// Package spatialindex implements the level-selection and bitmap-layout
// algorithm describes for the area-way index, generalized so
// the area-node and area-area index stages can reuse it: scan candidate
// magnifications, pick the smallest one whose per-cell fill statistics meet
// the configured thresholds, then emit a 2-D bitmap marking filled cells
// plus per-cell file-offset lists.
package spatialindex

import (
	"bufio"
	"math"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// Entry is one indexed object: its bounding box and the byte offset of its
// record in the owning data file.
type Entry struct {
	Type   typeinfo.TypeID
	Box    geo.GeoBox
	Offset uint64
}

type TileKey struct{ X, Y int }

// TileAt returns the tile coordinate of (lat, lon) at magnification mag (the
// globe divided into 2^mag cells per axis), matching libosmscout's
// Magnification-driven tiling scheme.
func TileAt(lat, lon float64, mag int) (int, int) {
	cells := math.Pow(2, float64(mag))
	x := int((lon + 180.0) / 360.0 * cells)
	y := int((lat + 90.0) / 180.0 * cells)
	return x, y
}

func centerTile(box geo.GeoBox, mag int) TileKey {
	lat := (box.MinLat + box.MaxLat) / 2
	lon := (box.MinLon + box.MaxLon) / 2
	x, y := TileAt(lat, lon, mag)
	return TileKey{x, y}
}

// SelectLevel implements level-fit rule: a level fits iff
// filled_cells >= 1 and either (a) the maximum and average cell fill are
// within cellSizeMax/cellSizeAverage, or (b) every entry lands in a single
// cell. Returns the chosen level and its cell assignment; if no level up to
// maxLevel fits, returns maxLevel's assignment (caller should warn).
func SelectLevel(entries []Entry, maxLevel, cellSizeAverage, cellSizeMax int) (int, map[TileKey][]Entry) {
	var lastCounts map[TileKey][]Entry
	for lvl := 0; lvl <= maxLevel; lvl++ {
		counts := bucket(entries, lvl)
		lastCounts = counts
		if len(counts) == 0 {
			continue
		}
		if fits(counts, cellSizeAverage, cellSizeMax) {
			return lvl, counts
		}
	}
	return maxLevel, lastCounts
}

func bucket(entries []Entry, level int) map[TileKey][]Entry {
	counts := map[TileKey][]Entry{}
	for _, e := range entries {
		key := centerTile(e.Box, level)
		counts[key] = append(counts[key], e)
	}
	return counts
}

func fits(counts map[TileKey][]Entry, cellSizeAverage, cellSizeMax int) bool {
	if len(counts) == 1 {
		return true
	}
	maxCell, sum := 0, 0
	for _, v := range counts {
		if len(v) > maxCell {
			maxCell = len(v)
		}
		sum += len(v)
	}
	avg := float64(sum) / float64(len(counts))
	return maxCell <= cellSizeMax && avg <= float64(cellSizeAverage)
}

// WriteBitmap writes one type's chosen-level bitmap block: the level, the
// min/max tile bounds, a packed bit array marking filled cells, then, for
// each filled cell in row-major order, a varint count followed by that many
// uint64 file offsets.
func WriteBitmap(w *bufio.Writer, level int, counts map[TileKey][]Entry) error {
	minX, minY, maxX, maxY := tileBounds(counts)

	if err := binio.PutUvarint(w, uint64(level)); err != nil {
		return err
	}
	for _, v := range []int{minX, minY, maxX, maxY} {
		if err := binio.PutVarint(w, int64(v)); err != nil {
			return err
		}
	}

	width := maxX - minX + 1
	height := maxY - minY + 1
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	bits := make([]byte, (width*height+7)/8)
	for key := range counts {
		idx := (key.Y-minY)*width + (key.X - minX)
		bits[idx/8] |= 1 << uint(idx%8)
	}
	if err := binio.PutUvarint(w, uint64(len(bits))); err != nil {
		return err
	}
	if _, err := w.Write(bits); err != nil {
		return err
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			entries, ok := counts[TileKey{x, y}]
			if !ok {
				continue
			}
			if err := binio.PutUvarint(w, uint64(len(entries))); err != nil {
				return err
			}
			for _, e := range entries {
				if err := binio.PutUint64(w, e.Offset); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func tileBounds(counts map[TileKey][]Entry) (minX, minY, maxX, maxY int) {
	first := true
	for key := range counts {
		if first {
			minX, maxX = key.X, key.X
			minY, maxY = key.Y, key.Y
			first = false
			continue
		}
		if key.X < minX {
			minX = key.X
		}
		if key.X > maxX {
			maxX = key.X
		}
		if key.Y < minY {
			minY = key.Y
		}
		if key.Y > maxY {
			maxY = key.Y
		}
	}
	return
}
