// Package routedata implements the RouteData stage: for every configured
// Router (per-router `{vehicle_mask, filename_base}`) it
// builds a routing graph from routable ways, stages it via
// internal/platform/routegraph (in-memory by default, Neo4j when
// NEO4J_URI is configured), then flattens the graph to that router's
// `<name>.dat` (nodes), `<name>2.dat` (edges), and `<name>.idx` (node-id
// index) files (step 11).
package routedata

import (
	"bufio"
	"context"
	"sort"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/config"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/platform/routegraph"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawindex"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/wayway"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// vehicle mask bits, matching original_source's VehicleMask ordering.
const (
	VehicleFoot    uint8 = 1 << 0
	VehicleBicycle uint8 = 1 << 1
	VehicleCar     uint8 = 1 << 2
)

type Stage struct {
	Routers  []config.Router
	NewStore func() routegraph.Store // nil defaults to routegraph.NewMemStore
}

func New(routers []config.Router, newStore func() routegraph.Store) Stage {
	return Stage{Routers: routers, NewStore: newStore}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "RouteData",
		Required: []string{wayway.DataFile},
		// Per-router output basenames aren't known until config is read,
		// so no provided files are declared and the orchestrator's
		// provenance DAG does not check RouteData's outputs.
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
		if _, ok := wy.Tags["highway"]; ok {
			ways = append(ways, wy)
		}
	}
	if err := rr.Close(); err != nil {
		return err
	}

	for ri, router := range s.Routers {
		if err := s.buildRouter(router, ways, p); err != nil {
			return err
		}
		prog.Report(progress.Snapshot{Stage: "RouteData", Step: "router", Processed: uint64(ri + 1), Total: uint64(len(s.Routers))})
	}
	return nil
}

func (s Stage) buildRouter(router config.Router, ways []objdata.Way, p stage.Parameter) error {
	newStore := s.NewStore
	if newStore == nil {
		newStore = func() routegraph.Store { return routegraph.NewMemStore() }
	}
	store := newStore()
	defer store.Close(context.Background())

	ctx := context.Background()
	nodeSeen := map[int64]geo.Coord{}

	for _, wy := range ways {
		if !routableForVehicle(wy.Tags, router.VehicleMask) {
			continue
		}
		for idx, pt := range wy.Points {
			// Route nodes: an object id derived from the coordinate
			// itself (the raw node id survived only on the first/last
			// point once wayway merged geometry, so co-located points
			// are keyed by their quantized coordinate instead).
			c := geo.Coord{Lat: pt.Lat, Lon: pt.Lon}
			id := int64(c.OSMScoutID())
			nodeSeen[id] = c

			if idx == 0 {
				continue
			}
			prevPt := wy.Points[idx-1]
			prevC := geo.Coord{Lat: prevPt.Lat, Lon: prevPt.Lon}
			prevID := int64(prevC.OSMScoutID())
			dist := prevC.DistanceMeters(c)
			if err := store.PutEdge(ctx, prevID, id, wy.OSMID, dist); err != nil {
				return err
			}
		}
	}

	for id, c := range nodeSeen {
		if err := store.PutNode(ctx, id, c.Lat, c.Lon); err != nil {
			return err
		}
	}

	nodes, err := store.AllNodes(ctx)
	if err != nil {
		return err
	}
	edges, err := store.AllEdges(ctx)
	if err != nil {
		return err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	nw, err := binio.NewRecordWriter(p.DataFile(router.DataFilename()))
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := binio.PutVarint(nw.Writer(), n.ID); err != nil {
			return err
		}
		if err := binio.PutUint64(nw.Writer(), floatBits(n.Lat)); err != nil {
			return err
		}
		if err := binio.PutUint64(nw.Writer(), floatBits(n.Lon)); err != nil {
			return err
		}
		nw.Advance(1)
	}
	if err := nw.Close(); err != nil {
		return err
	}

	ew, err := binio.NewRecordWriter(p.DataFile(router.VariantFilename()))
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := binio.PutVarint(ew.Writer(), e.FromID); err != nil {
			return err
		}
		if err := binio.PutVarint(ew.Writer(), e.ToID); err != nil {
			return err
		}
		if err := binio.PutVarint(ew.Writer(), e.WayID); err != nil {
			return err
		}
		if err := binio.PutUint64(ew.Writer(), floatBits(e.DistanceMeters)); err != nil {
			return err
		}
		ew.Advance(1)
	}
	if err := ew.Close(); err != nil {
		return err
	}

	iw, err := binio.NewRecordWriter(p.DataFile(router.IndexFilename()))
	if err != nil {
		return err
	}
	err = rawindex.ScanWithOffset(p.DataFile(router.DataFilename()), func(r *bufio.Reader, offset uint64) error {
		id, err := binio.ReadVarint(r)
		if err != nil {
			return err
		}
		if _, err := binio.ReadUint64(r); err != nil {
			return err
		}
		if _, err := binio.ReadUint64(r); err != nil {
			return err
		}
		if err := binio.PutVarint(iw.Writer(), id); err != nil {
			return err
		}
		if err := binio.PutUint64(iw.Writer(), offset); err != nil {
			return err
		}
		iw.Advance(1)
		return nil
	})
	if err != nil {
		_ = iw.Close()
		return err
	}
	return iw.Close()
}

func routableForVehicle(tags map[string]string, mask uint8) bool {
	highway := tags["highway"]
	if highway == "" {
		return false
	}
	if tags["access"] == "no" {
		return false
	}
	switch {
	case mask&VehicleFoot != 0 && tags["foot"] == "no":
		return false
	case mask&VehicleBicycle != 0 && tags["bicycle"] == "no":
		return false
	case mask&VehicleCar != 0 && (highway == "footway" || highway == "path" || highway == "pedestrian" || highway == "steps"):
		return false
	}
	return true
}

func floatBits(v float64) uint64 {
	return uint64(int64(v * 1e7))
}
