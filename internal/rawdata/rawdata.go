// Package rawdata holds the raw OSM object records produced by the
// preprocess stage (Data Model) before they are resolved,
// merged, and classified into the final typed object files.
package rawdata

import (
	"bufio"

	"github.com/osmscout-go/mapimport/internal/binio"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// RawCoord is a single parsed OSM node's coordinate, before it is known
// whether the node carries any tags (and is therefore a full RawNode) or is
// a bare way-shape vertex.
type RawCoord struct {
	OSMID int64
	Lat   float64
	Lon   float64
}

func (c RawCoord) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, c.OSMID); err != nil {
		return err
	}
	latBits, lonBits := encodeCoordFixed(c.Lat, c.Lon)
	if err := binio.PutUint32(w, latBits); err != nil {
		return err
	}
	return binio.PutUint32(w, lonBits)
}

func DecodeRawCoord(r *bufio.Reader) (RawCoord, error) {
	osmID, err := binio.ReadVarint(r)
	if err != nil {
		return RawCoord{}, err
	}
	latBits, err := binio.ReadUint32(r)
	if err != nil {
		return RawCoord{}, err
	}
	lonBits, err := binio.ReadUint32(r)
	if err != nil {
		return RawCoord{}, err
	}
	lat, lon := decodeCoordFixed(latBits, lonBits)
	return RawCoord{OSMID: osmID, Lat: lat, Lon: lon}, nil
}

// fixedPointScale matches "round((value+90|180) x
// conversionFactor)" coordinate encoding, at a resolution finer than the
// geo package's 27-bit index encoding since raw coordinates must round-trip
// exactly through preprocess.
const fixedPointScale = 1e7

func encodeCoordFixed(lat, lon float64) (uint32, uint32) {
	return uint32(round((lat + 90.0) * fixedPointScale)), uint32(round((lon + 180.0) * fixedPointScale))
}

func decodeCoordFixed(latBits, lonBits uint32) (float64, float64) {
	return float64(latBits)/fixedPointScale - 90.0, float64(lonBits)/fixedPointScale - 180.0
}

func round(f float64) float64 {
	if f >= 0 {
		return float64(int64(f + 0.5))
	}
	return float64(int64(f - 0.5))
}

// RawNode is a node that carries tags (and is therefore a candidate for
// direct inclusion in the node object file, not just a way-shape vertex).
type RawNode struct {
	OSMID int64
	Coord RawCoord
	Type  typeinfo.TypeID
	Tags  map[string]string
}

// RawWay is an ordered list of node references plus tags, before the
// way/area classification and merge stages run.
type RawWay struct {
	OSMID    int64
	NodeRefs []int64
	Type     typeinfo.TypeID
	Tags     map[string]string
	IsArea   bool // true once classifyWayOrArea (stages/preprocess) has decided
}

// RawRelationMember is one member of a raw relation.
type RawRelationMember struct {
	Role string
	Type RelationMemberType
	ID   int64
}

type RelationMemberType uint8

const (
	MemberNode RelationMemberType = iota
	MemberWay
	MemberRelation
)

// RawRelation is a parsed OSM relation before multipolygon/turn-restriction
// classification.
type RawRelation struct {
	OSMID   int64
	Type    typeinfo.TypeID
	Tags    map[string]string
	Members []RawRelationMember
}

// IsTurnRestriction reports whether r's tags mark it as a turn restriction,
// matching Preprocess.cpp's IsTurnRestriction check: a "type=restriction"
// relation with a "restriction" or "restriction:<vehicle>" tag.
func (r RawRelation) IsTurnRestriction() bool {
	if r.Tags["type"] != "restriction" {
		return false
	}
	if _, ok := r.Tags["restriction"]; ok {
		return true
	}
	for k := range r.Tags {
		if len(k) > len("restriction:") && k[:len("restriction:")] == "restriction:" {
			return true
		}
	}
	return false
}

// IsMultipolygon reports whether r's tags mark it as a multipolygon
// relation, matching Preprocess.cpp's IsMultipolygon check.
func (r RawRelation) IsMultipolygon() bool {
	t := r.Tags["type"]
	return t == "multipolygon" || t == "boundary"
}

// TurnRestrictionKind is the manoeuvre a restriction imposes.
type TurnRestrictionKind uint8

const (
	RestrictionForbid TurnRestrictionKind = iota // no_* : from/via/to is disallowed
	RestrictionAllow                             // only_* : from/via/to is the only permitted continuation
)

// TurnRestriction is the derived form of a raw "type=restriction" relation:
// exactly one from-way, one via-node, and one to-way, with the Allow/Forbid
// kind resolved from the restriction tag value.
type TurnRestriction struct {
	OSMID   int64
	Kind    TurnRestrictionKind
	FromWay int64
	ViaNode int64
	ToWay   int64
}

// ToTurnRestriction extracts a TurnRestriction from r, matching
// Preprocess.cpp: exactly one from-way, one via-node, one to-way member is
// required, and the restriction value's "only_"/"no_" prefix selects the
// kind. Returns ok=false (no turn-restriction emitted) if any member is
// missing, duplicated, or the restriction value carries neither prefix.
func (r RawRelation) ToTurnRestriction() (TurnRestriction, bool) {
	var fromWay, toWay, viaNode int64
	var haveFrom, haveTo, haveVia bool
	for _, m := range r.Members {
		switch {
		case m.Role == "from" && m.Type == MemberWay:
			if haveFrom {
				return TurnRestriction{}, false
			}
			fromWay, haveFrom = m.ID, true
		case m.Role == "to" && m.Type == MemberWay:
			if haveTo {
				return TurnRestriction{}, false
			}
			toWay, haveTo = m.ID, true
		case m.Role == "via" && m.Type == MemberNode:
			if haveVia {
				return TurnRestriction{}, false
			}
			viaNode, haveVia = m.ID, true
		}
	}
	if !haveFrom || !haveTo || !haveVia {
		return TurnRestriction{}, false
	}

	value := r.Tags["restriction"]
	if value == "" {
		for k, v := range r.Tags {
			if len(k) > len("restriction:") && k[:len("restriction:")] == "restriction:" {
				value = v
				break
			}
		}
	}
	kind := RestrictionForbid
	switch {
	case len(value) >= 5 && value[:5] == "only_":
		kind = RestrictionAllow
	case len(value) >= 3 && value[:3] == "no_":
		kind = RestrictionForbid
	default:
		return TurnRestriction{}, false
	}

	return TurnRestriction{OSMID: r.OSMID, Kind: kind, FromWay: fromWay, ViaNode: viaNode, ToWay: toWay}, true
}
