package ingest

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osmscout-go/mapimport/internal/rawdata"
	"github.com/osmscout-go/mapimport/internal/stages/preprocess"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// blockToStruct encodes a preprocess.Block as a structpb.Struct, the way
// a front end pushes one block over the wire.
func blockToStruct(b preprocess.Block) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"coords":    coordsToAny(b.Coords),
		"nodes":     nodesToAny(b.Nodes),
		"ways":      waysToAny(b.Ways),
		"relations": relationsToAny(b.Relations),
	})
}

func coordsToAny(cs []rawdata.RawCoord) []any {
	out := make([]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, map[string]any{
			"osm_id": float64(c.OSMID),
			"lat":    c.Lat,
			"lon":    c.Lon,
		})
	}
	return out
}

func tagsToAny(tags map[string]string) map[string]any {
	out := make(map[string]any, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

func nodesToAny(ns []rawdata.RawNode) []any {
	out := make([]any, 0, len(ns))
	for _, n := range ns {
		out = append(out, map[string]any{
			"osm_id": float64(n.OSMID),
			"lat":    n.Coord.Lat,
			"lon":    n.Coord.Lon,
			"type":   float64(n.Type),
			"tags":   tagsToAny(n.Tags),
		})
	}
	return out
}

func waysToAny(ws []rawdata.RawWay) []any {
	out := make([]any, 0, len(ws))
	for _, w := range ws {
		refs := make([]any, 0, len(w.NodeRefs))
		for _, r := range w.NodeRefs {
			refs = append(refs, float64(r))
		}
		out = append(out, map[string]any{
			"osm_id":    float64(w.OSMID),
			"node_refs": refs,
			"type":      float64(w.Type),
			"tags":      tagsToAny(w.Tags),
		})
	}
	return out
}

func relationsToAny(rs []rawdata.RawRelation) []any {
	out := make([]any, 0, len(rs))
	for _, r := range rs {
		members := make([]any, 0, len(r.Members))
		for _, m := range r.Members {
			members = append(members, map[string]any{
				"role": m.Role,
				"type": float64(m.Type),
				"id":   float64(m.ID),
			})
		}
		out = append(out, map[string]any{
			"osm_id":  float64(r.OSMID),
			"type":    float64(r.Type),
			"tags":    tagsToAny(r.Tags),
			"members": members,
		})
	}
	return out
}

// structToBlock reverses blockToStruct. It is tolerant of absent fields
// (an empty block section just yields a nil slice) but rejects malformed
// shapes so a corrupt front end fails loudly instead of silently
// dropping records.
func structToBlock(s *structpb.Struct) (preprocess.Block, error) {
	if s == nil {
		return preprocess.Block{}, fmt.Errorf("ingest: nil block message")
	}
	fields := s.GetFields()

	coords, err := decodeList(fields["coords"], decodeCoord)
	if err != nil {
		return preprocess.Block{}, fmt.Errorf("ingest: decode coords: %w", err)
	}
	nodes, err := decodeList(fields["nodes"], decodeNode)
	if err != nil {
		return preprocess.Block{}, fmt.Errorf("ingest: decode nodes: %w", err)
	}
	ways, err := decodeList(fields["ways"], decodeWay)
	if err != nil {
		return preprocess.Block{}, fmt.Errorf("ingest: decode ways: %w", err)
	}
	rels, err := decodeList(fields["relations"], decodeRelation)
	if err != nil {
		return preprocess.Block{}, fmt.Errorf("ingest: decode relations: %w", err)
	}
	return preprocess.Block{Coords: coords, Nodes: nodes, Ways: ways, Relations: rels}, nil
}

func decodeList[T any](v *structpb.Value, decode func(*structpb.Struct) (T, error)) ([]T, error) {
	if v == nil {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("expected list value")
	}
	out := make([]T, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		st := item.GetStructValue()
		if st == nil {
			return nil, fmt.Errorf("expected struct value in list")
		}
		decoded, err := decode(st)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

func decodeTags(v *structpb.Value) map[string]string {
	if v == nil {
		return nil
	}
	st := v.GetStructValue()
	if st == nil {
		return nil
	}
	fields := st.GetFields()
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, val := range fields {
		out[k] = val.GetStringValue()
	}
	return out
}

func decodeCoord(st *structpb.Struct) (rawdata.RawCoord, error) {
	f := st.GetFields()
	return rawdata.RawCoord{
		OSMID: int64(f["osm_id"].GetNumberValue()),
		Lat:   f["lat"].GetNumberValue(),
		Lon:   f["lon"].GetNumberValue(),
	}, nil
}

func decodeNode(st *structpb.Struct) (rawdata.RawNode, error) {
	f := st.GetFields()
	return rawdata.RawNode{
		OSMID: int64(f["osm_id"].GetNumberValue()),
		Coord: rawdata.RawCoord{
			OSMID: int64(f["osm_id"].GetNumberValue()),
			Lat:   f["lat"].GetNumberValue(),
			Lon:   f["lon"].GetNumberValue(),
		},
		Type: typeinfo.TypeID(f["type"].GetNumberValue()),
		Tags: decodeTags(f["tags"]),
	}, nil
}

func decodeWay(st *structpb.Struct) (rawdata.RawWay, error) {
	f := st.GetFields()
	var refs []int64
	if lv := f["node_refs"].GetListValue(); lv != nil {
		refs = make([]int64, 0, len(lv.GetValues()))
		for _, v := range lv.GetValues() {
			refs = append(refs, int64(v.GetNumberValue()))
		}
	}
	return rawdata.RawWay{
		OSMID:    int64(f["osm_id"].GetNumberValue()),
		NodeRefs: refs,
		Type:     typeinfo.TypeID(f["type"].GetNumberValue()),
		Tags:     decodeTags(f["tags"]),
		// IsArea is never trusted off the wire: whatever a front end sends
		// here is discarded and recomputed from scratch by
		// preprocess.classifyWayOrArea once the block reaches the
		// Preprocess stage, which is the only place the type registry
		// (needed for the PinWay precedence rule) is available.
	}, nil
}

func decodeRelation(st *structpb.Struct) (rawdata.RawRelation, error) {
	f := st.GetFields()
	var members []rawdata.RawRelationMember
	if lv := f["members"].GetListValue(); lv != nil {
		members = make([]rawdata.RawRelationMember, 0, len(lv.GetValues()))
		for _, v := range lv.GetValues() {
			mf := v.GetStructValue().GetFields()
			members = append(members, rawdata.RawRelationMember{
				Role: mf["role"].GetStringValue(),
				Type: rawdata.RelationMemberType(mf["type"].GetNumberValue()),
				ID:   int64(mf["id"].GetNumberValue()),
			})
		}
	}
	return rawdata.RawRelation{
		OSMID:   int64(f["osm_id"].GetNumberValue()),
		Type:    typeinfo.TypeID(f["type"].GetNumberValue()),
		Tags:    decodeTags(f["tags"]),
		Members: members,
	}, nil
}
