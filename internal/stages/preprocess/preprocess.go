// Package preprocess implements the Preprocess stage: it consumes a stream
// of parsed OSM blocks (nodes/ways/relations) from internal/ingest, splits
// each node into a raw coordinate plus, if it carries tags, a raw node
// record; classifies relations as turn restrictions or multipolygons
// (Preprocess.cpp's IsTurnRestriction/IsMultipolygon); and writes the
// per-type distribution statistics later stages use to choose index zoom
// levels.
//
// Concurrency mirrors Preprocess.cpp and errgroup-based batch
// pattern (internal/modules/learning/steps/embed_chunks.go): a bounded pool
// of block workers decode and classify blocks in parallel, and a single
// writer goroutine serializes their output in the order blocks were
// submitted, so the output files stay deterministic regardless of which
// worker finishes a given block first.
package preprocess

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/breaker"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/observability"
	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const (
	BoundingDat     = "bounding.dat"
	DistributionDat = "distribution.dat"
	RawCoordsDat    = "rawcoords.dat"
	RawNodesDat     = "rawnodes.dat"
	RawWaysDat      = "rawways.dat"
	RawRelsDat      = "rawrels.dat"
	RawCoastlineDat = "rawcoastline.dat"
	RawTurnRestrDat = "rawturnrestr.dat"

	blockQueueDepth = 1000
)

// Block is one unit of parsed input, as pushed by internal/ingest.
type Block struct {
	Nodes     []rawdata.RawNode
	Coords    []rawdata.RawCoord
	Ways      []rawdata.RawWay
	Relations []rawdata.RawRelation
}

// Source yields blocks in submission order; internal/ingest's gRPC handler
// implements this by draining its incoming stream.
type Source interface {
	Next(ctx context.Context) (Block, bool, error)
}

type Stage struct {
	Src Source
	Brk breaker.Breaker
}

func New(src Source, brk breaker.Breaker) *Stage {
	if brk == nil {
		brk = breaker.Dummy{}
	}
	return &Stage{Src: src, Brk: brk}
}

func (*Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "Preprocess",
		Provided: []string{BoundingDat},
		ProvidedTemporary: []string{
			DistributionDat, RawCoordsDat, RawNodesDat,
			RawWaysDat, RawRelsDat, RawCoastlineDat, RawTurnRestrDat,
		},
	}
}

// classified is the decoded/classified form of one block, ready to be
// handed to the writer in submission order.
type classified struct {
	seq   uint64
	block Block
}

func (s *Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	writers, err := openWriters(p)
	if err != nil {
		return err
	}
	defer writers.closeAll()

	workerCount := runtime.GOMAXPROCS(0)
	if workerCount < 1 {
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blockCh := make(chan classified, blockQueueDepth)
	resultCh := make(chan classified, blockQueueDepth)

	g, gctx := errgroup.WithContext(ctx)

	// Single reader goroutine preserves submission order by stamping a
	// sequence number on every block before handing it to the worker pool.
	g.Go(func() error {
		defer close(blockCh)
		var seq uint64
		for {
			if s.Brk.IsAborted() {
				return fmt.Errorf("preprocess aborted by breaker")
			}
			block, ok, err := s.Src.Next(gctx)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			select {
			case blockCh <- classified{seq: seq, block: block}:
				seq++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	// Bounded worker pool classifies blocks (turn restriction / multipolygon
	// detection) and forwards them to the writer, tagged with their
	// original sequence number.
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for in := range blockCh {
				out := classifyBlock(tc, in.block)
				select {
				case resultCh <- classified{seq: in.seq, block: out}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	// The single writer goroutine re-sorts classified blocks back into
	// submission order (workers may finish out of order) before appending
	// to the output files, keeping the on-disk layout deterministic.
	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- runWriter(gctx, resultCh, writers, tc, prog)
	}()

	// Closer: once all workers are done, close resultCh so the writer can
	// finish draining.
	go func() {
		_ = g.Wait()
		close(resultCh)
	}()

	if err := <-writeErrCh; err != nil {
		cancel()
		return err
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return writers.finish(p, tc)
}

func classifyBlock(tc *typeinfo.TypeConfig, b Block) Block {
	for i := range b.Relations {
		r := &b.Relations[i]
		_ = r.IsTurnRestriction()
		_ = r.IsMultipolygon()
	}

	kept := b.Ways[:0]
	for _, wy := range b.Ways {
		isArea, ok := classifyWayOrArea(tc, wy)
		if !ok {
			continue // data anomaly: unresolvable way, drop with warning
		}
		wy.IsArea = isArea
		kept = append(kept, wy)
	}
	b.Ways = kept

	return b
}

// classifyWayOrArea decides, exactly once, whether a raw way is a
// way-object or an area-object, so every downstream consumer of
// RawWay.IsArea can trust a single bit instead of re-deriving it.
//
// Precedence, evaluated in order:
//  1. area=no|false|0 always wins: way.
//  2. junction=roundabout always wins: way.
//  3. the resolved type's PinWay flag: way.
//  4. a closed ring (first node ref == last) of more than 3 nodes: area
//     (this also covers a closed natural=coastline ring).
//  5. anything else: way.
//
// A way with fewer than 2 node refs cannot be resolved to any geometry at
// all and is rejected outright (ok=false).
func classifyWayOrArea(tc *typeinfo.TypeConfig, wy rawdata.RawWay) (isArea bool, ok bool) {
	if len(wy.NodeRefs) < 2 {
		return false, false
	}

	switch strings.ToLower(strings.TrimSpace(wy.Tags["area"])) {
	case "no", "false", "0":
		return false, true
	}
	if wy.Tags["junction"] == "roundabout" {
		return false, true
	}
	if tc != nil && int(wy.Type) < tc.TypeCount() && tc.ByID(wy.Type).PinWay {
		return false, true
	}

	closedRing := len(wy.NodeRefs) > 3 && wy.NodeRefs[0] == wy.NodeRefs[len(wy.NodeRefs)-1]
	if closedRing {
		return true, true
	}
	return false, true
}

func runWriter(ctx context.Context, in <-chan classified, w *writers, tc *typeinfo.TypeConfig, prog progress.Sink) error {
	expected := uint64(0)
	pending := map[uint64]Block{}

	flushReady := func() error {
		for {
			block, ok := pending[expected]
			if !ok {
				return nil
			}
			delete(pending, expected)
			if err := w.writeBlock(block, tc); err != nil {
				return err
			}
			expected++
			prog.Report(progress.Snapshot{Stage: "Preprocess", Step: "write", Processed: expected})
		}
	}

	for {
		select {
		case c, ok := <-in:
			if !ok {
				return flushReady()
			}
			pending[c.seq] = c.block
			if err := flushReady(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type writers struct {
	coords    *binio.RecordWriter
	nodes     *binio.RecordWriter
	ways      *binio.RecordWriter
	rels      *binio.RecordWriter
	coastline *binio.RecordWriter
	turnRestr *binio.RecordWriter
	nodeStat  []uint32
	wayStat   []uint32
	areaStat  []uint32
	bbox      geo.GeoBox
}

func openWriters(p stage.Parameter) (*writers, error) {
	open := func(name string) (*binio.RecordWriter, error) {
		return binio.NewRecordWriter(p.DataFile(name))
	}
	w := &writers{}
	var err error
	if w.coords, err = open(RawCoordsDat); err != nil {
		return nil, err
	}
	if w.nodes, err = open(RawNodesDat); err != nil {
		return nil, err
	}
	if w.ways, err = open(RawWaysDat); err != nil {
		return nil, err
	}
	if w.rels, err = open(RawRelsDat); err != nil {
		return nil, err
	}
	if w.coastline, err = open(RawCoastlineDat); err != nil {
		return nil, err
	}
	if w.turnRestr, err = open(RawTurnRestrDat); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *writers) writeBlock(b Block, tc *typeinfo.TypeConfig) error {
	if len(w.nodeStat) == 0 && tc.TypeCount() > 0 {
		w.nodeStat = make([]uint32, tc.TypeCount())
		w.wayStat = make([]uint32, tc.TypeCount())
		w.areaStat = make([]uint32, tc.TypeCount())
	}

	for _, c := range b.Coords {
		if err := c.Encode(w.coords.Writer()); err != nil {
			return err
		}
		w.coords.Advance(1)
		pt := geo.Coord{Lat: c.Lat, Lon: c.Lon}
		w.bbox = w.bbox.Merge(geo.NewGeoBox(pt, pt))
	}
	for _, n := range b.Nodes {
		if err := n.Encode(w.nodes.Writer()); err != nil {
			return err
		}
		w.nodes.Advance(1)
		if int(n.Type) < len(w.nodeStat) {
			w.nodeStat[n.Type]++
		}
	}
	for _, wy := range b.Ways {
		if err := wy.Encode(w.ways.Writer()); err != nil {
			return err
		}
		w.ways.Advance(1)
		if int(wy.Type) < len(w.wayStat) {
			if wy.IsArea {
				w.areaStat[wy.Type]++
			} else {
				w.wayStat[wy.Type]++
			}
		}
		if wy.Tags["natural"] == "coastline" {
			if err := wy.Encode(w.coastline.Writer()); err != nil {
				return err
			}
			w.coastline.Advance(1)
		}
	}
	for _, r := range b.Relations {
		if r.IsTurnRestriction() {
			if tr, ok := r.ToTurnRestriction(); ok {
				if err := tr.Encode(w.turnRestr.Writer()); err != nil {
					return err
				}
				w.turnRestr.Advance(1)
			}
			// Malformed restrictions (missing from/via/to, or an
			// unrecognised restriction value) emit nothing: a relation
			// with type=restriction missing any of from, via, to
			// produces no turn-restriction record.
			continue
		}
		if err := r.Encode(w.rels.Writer()); err != nil {
			return err
		}
		w.rels.Advance(1)
	}
	return nil
}

func (w *writers) closeAll() {
	for _, c := range []*binio.RecordWriter{w.coords, w.nodes, w.ways, w.rels, w.coastline, w.turnRestr} {
		if c != nil {
			_ = c.Close()
		}
	}
}

// finish closes every writer (back-patching record counts) and writes the
// per-type distribution statistics file.
func (w *writers) finish(p stage.Parameter, tc *typeinfo.TypeConfig) error {
	closers := []*binio.RecordWriter{w.coords, w.nodes, w.ways, w.rels, w.coastline, w.turnRestr}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			return err
		}
	}

	if err := writeBoundingBox(p.DataFile(BoundingDat), w.bbox); err != nil {
		return err
	}

	dw, err := binio.NewRecordWriter(p.DataFile(DistributionDat))
	if err != nil {
		return err
	}
	for i := 0; i < tc.TypeCount(); i++ {
		var nodeCount, wayCount, areaCount uint32
		if i < len(w.nodeStat) {
			nodeCount = w.nodeStat[i]
		}
		if i < len(w.wayStat) {
			wayCount = w.wayStat[i]
		}
		if i < len(w.areaStat) {
			areaCount = w.areaStat[i]
		}
		bw := dw.Writer()
		if err := binio.PutUvarint(bw, uint64(nodeCount)); err != nil {
			return err
		}
		if err := binio.PutUvarint(bw, uint64(wayCount)); err != nil {
			return err
		}
		if err := binio.PutUvarint(bw, uint64(areaCount)); err != nil {
			return err
		}
		dw.Advance(1)
	}
	if err := dw.Close(); err != nil {
		return err
	}

	checkStructuralDrift(tc, w.nodeStat, w.wayStat, w.areaStat)
	return nil
}

// checkStructuralDrift compares this run's per-type object totals against
// an optional baseline (STRUCTURAL_DRIFT_BASELINE_JSON, a type-name ->
// total-count JSON object an operator captures from a known-good run) and
// reports any type whose count has drifted beyond tolerance. A run with no
// baseline configured is a silent no-op.
func checkStructuralDrift(tc *typeinfo.TypeConfig, nodeStat, wayStat, areaStat []uint32) {
	raw := os.Getenv("STRUCTURAL_DRIFT_BASELINE_JSON")
	if raw == "" {
		return
	}
	var baseline map[string]uint64
	if err := json.Unmarshal([]byte(raw), &baseline); err != nil || len(baseline) == 0 {
		return
	}

	current := make(map[string]uint64, tc.TypeCount())
	for i := 0; i < tc.TypeCount(); i++ {
		var total uint64
		if i < len(nodeStat) {
			total += uint64(nodeStat[i])
		}
		if i < len(wayStat) {
			total += uint64(wayStat[i])
		}
		if i < len(areaStat) {
			total += uint64(areaStat[i])
		}
		current[tc.ByID(typeinfo.TypeID(i)).Name] = total
	}

	if drifted := observability.CompareDistribution(current, baseline, 0.5); len(drifted) > 0 {
		observability.ReportStructuralDrift(context.Background(), nil, drifted, map[string]any{"stage": "Preprocess"})
	}
}

// writeBoundingBox writes bounding.dat: a validity byte followed by four
// little-endian float64s (min lat, min lon, max lat, max lon). An invalid
// box (no coordinates seen at all, e.g. an empty input) writes a zero
// validity byte and no further data, per scenario 1.
func writeBoundingBox(path string, box geo.GeoBox) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, importerrors.ErrIO)
	}
	defer f.Close()

	valid := byte(0)
	if box.Valid() {
		valid = 1
	}
	if err := binary.Write(f, binary.LittleEndian, valid); err != nil {
		return fmt.Errorf("write bounding box validity: %w", importerrors.ErrIO)
	}
	if !box.Valid() {
		return nil
	}
	values := []float64{box.MinLat, box.MinLon, box.MaxLat, box.MaxLon}
	for _, v := range values {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write bounding box: %w", importerrors.ErrIO)
		}
	}
	return nil
}

// ReadBoundingBox reverses writeBoundingBox, for stages (water index, area
// index level selection) that need the overall data extent.
func ReadBoundingBox(path string) (geo.GeoBox, error) {
	f, err := os.Open(path)
	if err != nil {
		return geo.GeoBox{}, fmt.Errorf("open %s: %w", path, importerrors.ErrIO)
	}
	defer f.Close()

	var valid byte
	if err := binary.Read(f, binary.LittleEndian, &valid); err != nil {
		return geo.GeoBox{}, fmt.Errorf("read bounding box validity: %w", importerrors.ErrFormatViolation)
	}
	if valid == 0 {
		return geo.GeoBox{}, nil
	}
	values := make([]float64, 4)
	for i := range values {
		if err := binary.Read(f, binary.LittleEndian, &values[i]); err != nil {
			return geo.GeoBox{}, fmt.Errorf("read bounding box: %w", importerrors.ErrFormatViolation)
		}
	}
	return geo.NewGeoBox(
		geo.Coord{Lat: values[0], Lon: values[1]},
		geo.Coord{Lat: values[2], Lon: values[3]},
	), nil
}
