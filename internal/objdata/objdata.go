// Package objdata holds the final, coordinate-resolved object records that
// flow out of the node/way/area derivation stages into nodes.dat, ways.dat
// and areas.dat (output layout). Unlike rawdata's records, these
// carry resolved (lat, lon) pairs rather than unresolved OSM node ids: by
// the time an object reaches this package every reference has already been
// looked up in the coordinate store.
package objdata

import (
	"bufio"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// Point is a resolved coordinate, stored at the same fixed-point
// resolution as rawdata.RawCoord so encoding stays consistent end to end.
type Point struct {
	Lat, Lon float64
}

func writePoint(w *bufio.Writer, p Point) error {
	c := rawdata.RawCoord{Lat: p.Lat, Lon: p.Lon}
	// RawCoord.Encode also writes an OSMID varint; objdata doesn't need it
	// per-point (the node/way already carries its own id), so points are
	// encoded as bare lat/lon pairs instead of reusing RawCoord.Encode.
	latBits, lonBits := encodeFixed(c.Lat, c.Lon)
	if err := binio.PutUint32(w, latBits); err != nil {
		return err
	}
	return binio.PutUint32(w, lonBits)
}

func readPoint(r *bufio.Reader) (Point, error) {
	latBits, err := binio.ReadUint32(r)
	if err != nil {
		return Point{}, err
	}
	lonBits, err := binio.ReadUint32(r)
	if err != nil {
		return Point{}, err
	}
	lat, lon := decodeFixed(latBits, lonBits)
	return Point{Lat: lat, Lon: lon}, nil
}

const fixedScale = 1e7

func encodeFixed(lat, lon float64) (uint32, uint32) {
	return uint32(int64((lat+90.0)*fixedScale + 0.5)), uint32(int64((lon+180.0)*fixedScale + 0.5))
}

func decodeFixed(latBits, lonBits uint32) (float64, float64) {
	return float64(latBits)/fixedScale - 90.0, float64(lonBits)/fixedScale - 180.0
}

// Node is a final, persisted point object (nodes.dat).
type Node struct {
	OSMID int64
	Point Point
	Type  typeinfo.TypeID
	Tags  map[string]string
}

func (n Node) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, n.OSMID); err != nil {
		return err
	}
	if err := writePoint(w, n.Point); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(n.Type)); err != nil {
		return err
	}
	return rawdata.WriteTags(w, n.Tags)
}

func DecodeNode(r *bufio.Reader) (Node, error) {
	id, err := binio.ReadVarint(r)
	if err != nil {
		return Node{}, err
	}
	pt, err := readPoint(r)
	if err != nil {
		return Node{}, err
	}
	t, err := binio.ReadUvarint(r)
	if err != nil {
		return Node{}, err
	}
	tags, err := rawdata.ReadTags(r)
	if err != nil {
		return Node{}, err
	}
	return Node{OSMID: id, Point: pt, Type: typeinfo.TypeID(t), Tags: tags}, nil
}

// Way is a final, persisted linear object (ways.dat). Merged ways keep the
// id of the lowest-id fragment that was folded into them.
type Way struct {
	OSMID  int64
	Type   typeinfo.TypeID
	Tags   map[string]string
	Points []Point
	IsArea bool
}

func (wy Way) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, wy.OSMID); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(wy.Type)); err != nil {
		return err
	}
	areaFlag := byte(0)
	if wy.IsArea {
		areaFlag = 1
	}
	if err := w.WriteByte(areaFlag); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(len(wy.Points))); err != nil {
		return err
	}
	for _, pt := range wy.Points {
		if err := writePoint(w, pt); err != nil {
			return err
		}
	}
	return rawdata.WriteTags(w, wy.Tags)
}

func DecodeWay(r *bufio.Reader) (Way, error) {
	id, err := binio.ReadVarint(r)
	if err != nil {
		return Way{}, err
	}
	t, err := binio.ReadUvarint(r)
	if err != nil {
		return Way{}, err
	}
	areaFlag, err := r.ReadByte()
	if err != nil {
		return Way{}, err
	}
	n, err := binio.ReadUvarint(r)
	if err != nil {
		return Way{}, err
	}
	pts := make([]Point, n)
	for i := range pts {
		pts[i], err = readPoint(r)
		if err != nil {
			return Way{}, err
		}
	}
	tags, err := rawdata.ReadTags(r)
	if err != nil {
		return Way{}, err
	}
	return Way{OSMID: id, Type: typeinfo.TypeID(t), Tags: tags, Points: pts, IsArea: areaFlag == 1}, nil
}

// Area is a final, persisted polygon object (areas.dat): an outer ring plus
// zero or more hole rings, as produced from either a closed way or a
// multipolygon relation.
type Area struct {
	OSMID int64
	Type  typeinfo.TypeID
	Tags  map[string]string
	Outer []Point
	Holes [][]Point
}

func (a Area) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, a.OSMID); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(a.Type)); err != nil {
		return err
	}
	if err := writeRing(w, a.Outer); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(len(a.Holes))); err != nil {
		return err
	}
	for _, hole := range a.Holes {
		if err := writeRing(w, hole); err != nil {
			return err
		}
	}
	return rawdata.WriteTags(w, a.Tags)
}

func DecodeArea(r *bufio.Reader) (Area, error) {
	id, err := binio.ReadVarint(r)
	if err != nil {
		return Area{}, err
	}
	t, err := binio.ReadUvarint(r)
	if err != nil {
		return Area{}, err
	}
	outer, err := readRing(r)
	if err != nil {
		return Area{}, err
	}
	holeCount, err := binio.ReadUvarint(r)
	if err != nil {
		return Area{}, err
	}
	holes := make([][]Point, holeCount)
	for i := range holes {
		holes[i], err = readRing(r)
		if err != nil {
			return Area{}, err
		}
	}
	tags, err := rawdata.ReadTags(r)
	if err != nil {
		return Area{}, err
	}
	return Area{OSMID: id, Type: typeinfo.TypeID(t), Tags: tags, Outer: outer, Holes: holes}, nil
}

func writeRing(w *bufio.Writer, ring []Point) error {
	if err := binio.PutUvarint(w, uint64(len(ring))); err != nil {
		return err
	}
	for _, pt := range ring {
		if err := writePoint(w, pt); err != nil {
			return err
		}
	}
	return nil
}

func readRing(r *bufio.Reader) ([]Point, error) {
	n, err := binio.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	ring := make([]Point, n)
	for i := range ring {
		ring[i], err = readPoint(r)
		if err != nil {
			return nil, err
		}
	}
	return ring, nil
}
