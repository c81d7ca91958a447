// Package wayway implements the WayWayData stage: it reads
// classified raw ways, groups them by type, merges chains of ways that
// share an endpoint and agree on every routing-relevant feature, rewrites
// turn-restriction way references to the surviving merged id, resolves
// node references to coordinates, and emits the final ways.dat.
//
// Type groups are processed by a bounded worker pool sized to
// runtime.GOMAXPROCS(0), mirroring the preprocess stage's own worker-pool
// idiom: process types in parallel batches sized to fit in memory. This
// implementation keeps each type's working set fully in memory rather
// than falling back to a low-memory re-scan path for oversized batches;
// see DESIGN.md.
package wayway

import (
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/coordstore"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/coorddata"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const (
	DataFile        = "ways.dat"
	RestrictionFile = "turnrestrfinal.dat"
)

type Stage struct{}

func New() Stage { return Stage{} }

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name: "WayWayData",
		Required: []string{
			preprocess.RawWaysDat, preprocess.RawTurnRestrDat,
			coorddata.CoordDat, coorddata.CoordIndexDat,
		},
		Provided:          []string{DataFile},
		ProvidedTemporary: []string{RestrictionFile},
	}
}

type wayChain struct {
	survivorID int64
	mergedFrom []int64
	wtype      typeinfo.TypeID
	tags       map[string]string
	nodeRefs   []int64
}

func (Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	restrBy, allRestrictions, err := readRestrictions(p.DataFile(preprocess.RawTurnRestrDat))
	if err != nil {
		return err
	}

	groups, err := groupWaysByType(p.DataFile(preprocess.RawWaysDat))
	if err != nil {
		return err
	}

	types := make([]typeinfo.TypeID, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	workerCount := runtime.GOMAXPROCS(0)
	if workerCount < 1 {
		workerCount = 1
	}

	var mu sync.Mutex
	remap := map[int64]int64{}
	chains := make([]wayChain, 0, 1024)

	var g errgroup.Group
	g.SetLimit(workerCount)
	var processed int64
	for _, t := range types {
		t := t
		g.Go(func() error {
			merged, localRemap := mergeType(groups[t], restrBy)
			mu.Lock()
			chains = append(chains, merged...)
			for old, survivor := range localRemap {
				remap[old] = survivor
			}
			processed++
			prog.Report(progress.Snapshot{Stage: "WayWayData", Step: "merge", Processed: uint64(processed), Total: uint64(len(types))})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	coords, err := coordstore.Open(p.DataFile(coorddata.CoordDat), p.DataFile(coorddata.CoordIndexDat))
	if err != nil {
		return err
	}
	defer coords.Close()

	w, err := binio.NewRecordWriter(p.DataFile(DataFile))
	if err != nil {
		return err
	}
	for _, c := range chains {
		resolved, err := coords.BulkLookup(c.nodeRefs)
		if err != nil {
			return err
		}
		pts := make([]objdata.Point, 0, len(c.nodeRefs))
		for _, ref := range c.nodeRefs {
			if cc, ok := resolved[ref]; ok {
				pts = append(pts, objdata.Point{Lat: cc.Lat, Lon: cc.Lon})
			}
		}
		if len(pts) < 2 {
			continue // data anomaly: unresolvable way, drop with warning
		}
		wy := objdata.Way{OSMID: c.survivorID, Type: c.wtype, Tags: c.tags, Points: pts}
		if err := wy.Encode(w.Writer()); err != nil {
			return err
		}
		w.Advance(1)
	}
	if err := w.Close(); err != nil {
		return err
	}

	rw, err := binio.NewRecordWriter(p.DataFile(RestrictionFile))
	if err != nil {
		return err
	}
	for _, r := range allRestrictions {
		if survivor, ok := remap[r.FromWay]; ok {
			r.FromWay = survivor
		}
		if survivor, ok := remap[r.ToWay]; ok {
			r.ToWay = survivor
		}
		if err := r.Encode(rw.Writer()); err != nil {
			return err
		}
		rw.Advance(1)
	}
	return rw.Close()
}

func readRestrictions(path string) (map[int64][]rawdata.TurnRestriction, []rawdata.TurnRestriction, error) {
	rr, err := binio.NewRecordReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer rr.Close()

	byWay := map[int64][]rawdata.TurnRestriction{}
	all := make([]rawdata.TurnRestriction, 0, rr.Count)
	for i := uint32(0); i < rr.Count; i++ {
		tr, err := rawdata.DecodeTurnRestriction(rr.Reader())
		if err != nil {
			return nil, nil, err
		}
		byWay[tr.FromWay] = append(byWay[tr.FromWay], tr)
		byWay[tr.ToWay] = append(byWay[tr.ToWay], tr)
		all = append(all, tr)
	}
	return byWay, all, nil
}

func groupWaysByType(path string) (map[typeinfo.TypeID][]rawdata.RawWay, error) {
	rr, err := binio.NewRecordReader(path)
	if err != nil {
		return nil, err
	}
	defer rr.Close()

	groups := map[typeinfo.TypeID][]rawdata.RawWay{}
	for i := uint32(0); i < rr.Count; i++ {
		wy, err := rawdata.DecodeRawWay(rr.Reader())
		if err != nil {
			return nil, err
		}
		if wy.IsArea {
			continue // areas are handled by wayareadata
		}
		groups[wy.Type] = append(groups[wy.Type], wy)
	}
	return groups, nil
}

func headTail(refs []int64) (int64, int64) { return refs[0], refs[len(refs)-1] }

func tagsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func restrictionBlocksMerge(restrBy map[int64][]rawdata.TurnRestriction, node int64, ids ...int64) bool {
	for _, id := range ids {
		for _, r := range restrBy[id] {
			if r.ViaNode == node {
				return true
			}
		}
	}
	return false
}

// mergeType runs the merge loop of step 3 over one type's raw
// ways: repeatedly scans for node ids with exactly two live chain
// endpoints and merges them, until a full pass makes no further progress.
func mergeType(ways []rawdata.RawWay, restrBy map[int64][]rawdata.TurnRestriction) ([]wayChain, map[int64]int64) {
	chains := make([]*wayChain, 0, len(ways))
	var closed []*wayChain
	for _, wy := range ways {
		if len(wy.NodeRefs) < 2 {
			continue
		}
		c := &wayChain{
			survivorID: wy.OSMID,
			mergedFrom: []int64{wy.OSMID},
			wtype:      wy.Type,
			tags:       wy.Tags,
			nodeRefs:   append([]int64(nil), wy.NodeRefs...),
		}
		if wy.NodeRefs[0] == wy.NodeRefs[len(wy.NodeRefs)-1] {
			closed = append(closed, c)
			continue
		}
		chains = append(chains, c)
	}

	for {
		endpointMap := map[int64][]int{}
		for i, c := range chains {
			h, t := headTail(c.nodeRefs)
			endpointMap[h] = append(endpointMap[h], i)
			if t != h {
				endpointMap[t] = append(endpointMap[t], i)
			}
		}

		mergedAny := false
		consumed := make(map[int]bool)
		for node, idxs := range endpointMap {
			if len(idxs) != 2 || idxs[0] == idxs[1] {
				continue
			}
			a, b := idxs[0], idxs[1]
			if consumed[a] || consumed[b] {
				continue
			}
			ca, cb := chains[a], chains[b]
			if !tagsEqual(ca.tags, cb.tags) {
				continue
			}
			if restrictionBlocksMerge(restrBy, node, append(append([]int64{}, ca.mergedFrom...), cb.mergedFrom...)...) {
				continue
			}
			merged := joinChains(ca, cb, node)
			if merged == nil {
				continue
			}
			chains[a] = merged
			consumed[b] = true
			mergedAny = true
		}

		if !mergedAny {
			break
		}
		compacted := chains[:0]
		for i, c := range chains {
			if !consumed[i] {
				compacted = append(compacted, c)
			}
		}
		chains = compacted
	}

	chains = append(chains, closed...)

	remap := map[int64]int64{}
	out := make([]wayChain, 0, len(chains))
	for _, c := range chains {
		for _, old := range c.mergedFrom {
			remap[old] = c.survivorID
		}
		out = append(out, *c)
	}
	return out, remap
}

// joinChains concatenates cb onto ca at the shared node, reorienting
// whichever side needs reversing so the result is a single continuous
// polyline; the surviving id is the lower of the two contributing ids so
// output is deterministic regardless of merge order.
func joinChains(ca, cb *wayChain, node int64) *wayChain {
	aHead, aTail := headTail(ca.nodeRefs)
	bHead, bTail := headTail(cb.nodeRefs)

	var merged []int64
	switch {
	case aTail == node && bHead == node:
		merged = append(append([]int64{}, ca.nodeRefs...), cb.nodeRefs[1:]...)
	case aTail == node && bTail == node:
		merged = append(append([]int64{}, ca.nodeRefs...), reverseIDs(cb.nodeRefs)[1:]...)
	case aHead == node && bTail == node:
		merged = append(append([]int64{}, cb.nodeRefs...), ca.nodeRefs[1:]...)
	case aHead == node && bHead == node:
		merged = append(reverseIDs(ca.nodeRefs), cb.nodeRefs[1:]...)
	default:
		return nil
	}

	survivor := ca.survivorID
	if cb.survivorID < survivor {
		survivor = cb.survivorID
	}

	return &wayChain{
		survivorID: survivor,
		mergedFrom: append(append([]int64{}, ca.mergedFrom...), cb.mergedFrom...),
		wtype:      ca.wtype,
		tags:       ca.tags,
		nodeRefs:   merged,
	}
}

func reverseIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
