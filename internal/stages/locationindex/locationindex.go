// Package locationindex implements the LocationIndex stage: a flat
// name -> object index over every named node and area, resolving each
// object's canonical label via lang_order/alt_lang_order, with
// an optional LLM tie-break when multiple name:<lang> tags remain equally
// ranked.
package locationindex

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/geo"
	"github.com/osmscout-go/mapimport/internal/nametiebreak"
	"github.com/osmscout-go/mapimport/internal/objdata"
	"github.com/osmscout-go/mapimport/internal/progress"
	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stage"
	"github.com/osmscout-go/mapimport/internal/stages/mergeareas"
	"github.com/osmscout-go/mapimport/internal/stages/nodedata"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

const IndexFile = "location.idx"

const (
	kindNode uint64 = 0
	kindArea uint64 = 1
)

type entry struct {
	name  string
	kind  uint64
	osmID int64
	box   geo.GeoBox
}

type Stage struct {
	LangOrder    []string
	AltLangOrder []string
	TieBreak     nametiebreak.Client // nil disables the LLM path
}

func New(langOrder, altLangOrder []string, tieBreak nametiebreak.Client) Stage {
	return Stage{LangOrder: langOrder, AltLangOrder: altLangOrder, TieBreak: tieBreak}
}

func (Stage) Describe(stage.Parameter) stage.Descriptor {
	return stage.Descriptor{
		Name:     "LocationIndex",
		Required: []string{nodedata.DataFile, mergeareas.DataFile},
		Provided: []string{IndexFile},
	}
}

func (s Stage) Import(tc *typeinfo.TypeConfig, p stage.Parameter, prog progress.Sink) error {
	var entries []entry

	nr, err := binio.NewRecordReader(p.DataFile(nodedata.DataFile))
	if err != nil {
		return err
	}
	for i := uint32(0); i < nr.Count; i++ {
		n, err := objdata.DecodeNode(nr.Reader())
		if err != nil {
			_ = nr.Close()
			return err
		}
		if name := s.canonicalName(n.Tags); name != "" {
			c := geo.Coord{Lat: n.Point.Lat, Lon: n.Point.Lon}
			entries = append(entries, entry{name: name, kind: kindNode, osmID: n.OSMID, box: geo.NewGeoBox(c, c)})
		}
		prog.Report(progress.Snapshot{Stage: "LocationIndex", Step: "nodes", Processed: uint64(i + 1), Total: uint64(nr.Count)})
	}
	if err := nr.Close(); err != nil {
		return err
	}

	ar, err := binio.NewRecordReader(p.DataFile(mergeareas.DataFile))
	if err != nil {
		return err
	}
	for i := uint32(0); i < ar.Count; i++ {
		a, err := objdata.DecodeArea(ar.Reader())
		if err != nil {
			_ = ar.Close()
			return err
		}
		if name := s.canonicalName(a.Tags); name != "" {
			box := geo.GeoBox{}
			for _, pt := range a.Outer {
				c := geo.Coord{Lat: pt.Lat, Lon: pt.Lon}
				box = box.Merge(geo.NewGeoBox(c, c))
			}
			if box.Valid() {
				entries = append(entries, entry{name: name, kind: kindArea, osmID: a.OSMID, box: box})
			}
		}
		prog.Report(progress.Snapshot{Stage: "LocationIndex", Step: "areas", Processed: uint64(i + 1), Total: uint64(ar.Count)})
	}
	if err := ar.Close(); err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	w, err := binio.NewRecordWriter(p.DataFile(IndexFile))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := rawdata.WriteString(w.Writer(), e.name); err != nil {
			return err
		}
		if err := binio.PutUvarint(w.Writer(), e.kind); err != nil {
			return err
		}
		if err := binio.PutVarint(w.Writer(), e.osmID); err != nil {
			return err
		}
		for _, v := range []float64{e.box.MinLat, e.box.MinLon, e.box.MaxLat, e.box.MaxLon} {
			if err := binio.PutUint64(w.Writer(), math.Float64bits(v)); err != nil {
				return err
			}
		}
		w.Advance(1)
	}
	return w.Close()
}

// canonicalName picks the tagged name according to lang_order, falling back
// to alt_lang_order, and finally — if still ambiguous and a tie-break
// client is configured — an LLM classification over the remaining
// name:<lang> candidates. "#" in lang_order matches the untagged "name" key
// itself, matching original_source's lang-order wildcard.
func (s Stage) canonicalName(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, lang := range s.LangOrder {
		if lang == "#" {
			if v, ok := tags["name"]; ok {
				return v
			}
			continue
		}
		if v, ok := tags["name:"+lang]; ok {
			return v
		}
	}
	for _, lang := range s.AltLangOrder {
		if v, ok := tags["name:"+lang]; ok {
			return v
		}
	}

	candidates := map[string]string{}
	for k, v := range tags {
		if k == "name" || strings.HasPrefix(k, "name:") {
			candidates[k] = v
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	if len(candidates) == 1 || s.TieBreak == nil {
		return firstCandidate(candidates)
	}
	chosen, err := s.TieBreak.ChooseCanonicalName(context.Background(), candidates)
	if err != nil || chosen == "" {
		return firstCandidate(candidates)
	}
	return chosen
}

func firstCandidate(candidates map[string]string) string {
	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return candidates[keys[0]]
}
