// Package intersectionindex implements the IntersectionIndex stage: it
// finds every coordinate shared by two or more distinct routable ways and
// records it as an intersection, independent of any one router's vehicle
// mask (step 11).
package intersectionindex

import (
	"sort"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/wayway"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexFile = "intersections.idx"

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "IntersectionIndex",
		Required: []string{wayway.DataFile},
		Provided: []string{IndexFile},
	}
}

type nodeWays struct {
	coord geo.Coord
	ways  map[int64]bool
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	rr, err := binio.NewRecordReader(p.DataFile(wayway.DataFile))
	if err != nil {
		return err
	}

	byCoord := map[uint64]*nodeWays{}
	for i := uint32(0); i < rr.Count; i++ {
		wy, err := objdata.DecodeWay(rr.Reader())
		if err != nil {
			_ = rr.Close()
			return err
		}
		if _, ok := wy.Tags["highway"]; !ok {
			continue
		}
		for _, pt := range wy.Points {
			c := geo.Coord{Lat: pt.Lat, Lon: pt.Lon}
			key := c.OSMScoutID()
			nw, ok := byCoord[key]
			if !ok {
				nw = &nodeWays{coord: c, ways: map[int64]bool{}}
				byCoord[key] = nw
			}
			nw.ways[wy.OSMID] = true
		}
		prog.Report(progress.Snapshot{Stage: "IntersectionIndex", Step: "scan", Processed: uint64(i + 1), Total: uint64(rr.Count)})
	}
	if err := rr.Close(); err != nil {
		return err
	}

	keys := make([]uint64, 0, len(byCoord))
	for k, nw := range byCoord {
		if len(nw.ways) >= 2 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	w, err := binio.NewRecordWriter(p.DataFile(IndexFile))
	if err != nil {
		return err
	}
	for _, k := range keys {
		nw := byCoord[k]
		if err := binio.PutUint64(w.Writer(), nw.coord.OSMScoutID()); err != nil {
			return err
		}
		if err := binio.PutUvarint(w.Writer(), uint64(len(nw.ways))); err != nil {
			return err
		}
		wayIDs := make([]int64, 0, len(nw.ways))
		for id := range nw.ways {
			wayIDs = append(wayIDs, id)
		}
		sort.Slice(wayIDs, func(i, j int) bool { return wayIDs[i] < wayIDs[j] })
		for _, id := range wayIDs {
			if err := binio.PutVarint(w.Writer(), id); err != nil {
				return err
			}
		}
		w.Advance(1)
	}
	return w.Close()
}
