package rawdata

import (
	"bufio"
	"fmt"
	"io"

	"github.com/osmscout-go/mapimport/internal/binio"
	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
	"github.com/osmscout-go/mapimport/internal/typeinfo"
)

// WriteTags and ReadTags are exported so later stages (objdata, the
// location and text indices) that build their own record formats on top of
// a resolved tag set can reuse the same encoding without duplicating it.
func WriteTags(w *bufio.Writer, tags map[string]string) error { return writeTags(w, tags) }
func ReadTags(r *bufio.Reader) (map[string]string, error)     { return readTags(r) }
func WriteString(w *bufio.Writer, s string) error              { return writeString(w, s) }
func ReadString(r *bufio.Reader) (string, error)                { return readString(r) }

func writeTags(w *bufio.Writer, tags map[string]string) error {
	if err := binio.PutUvarint(w, uint64(len(tags))); err != nil {
		return err
	}
	for k, v := range tags {
		if err := writeString(w, k); err != nil {
			return err
		}
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readTags(r *bufio.Reader) (map[string]string, error) {
	n, err := binio.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	tags := make(map[string]string, n)
	for i := uint64(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		tags[k] = v
	}
	return tags, nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := binio.PutUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	if _, err := w.WriteString(s); err != nil {
		return fmt.Errorf("write string: %w", importerrors.ErrIO)
	}
	return nil
}

func readString(r *bufio.Reader) (string, error) {
	n, err := binio.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read string: %w", importerrors.ErrIO)
	}
	return string(buf), nil
}

// Encode writes n to w: OSM id, embedded coord, type id, tags.
func (n RawNode) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, n.OSMID); err != nil {
		return err
	}
	if err := n.Coord.Encode(w); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(n.Type)); err != nil {
		return err
	}
	return writeTags(w, n.Tags)
}

// DecodeRawNode reverses RawNode.Encode.
func DecodeRawNode(r *bufio.Reader) (RawNode, error) {
	osmID, err := binio.ReadVarint(r)
	if err != nil {
		return RawNode{}, err
	}
	coord, err := DecodeRawCoord(r)
	if err != nil {
		return RawNode{}, err
	}
	typeVal, err := binio.ReadUvarint(r)
	if err != nil {
		return RawNode{}, err
	}
	tags, err := readTags(r)
	if err != nil {
		return RawNode{}, err
	}
	return RawNode{OSMID: osmID, Coord: coord, Type: typeinfo.TypeID(typeVal), Tags: tags}, nil
}

// Encode writes wy to w: OSM id, node ref count + deltas, type id, area
// flag, tags.
func (wy RawWay) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, wy.OSMID); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(len(wy.NodeRefs))); err != nil {
		return err
	}
	var prev int64
	for _, ref := range wy.NodeRefs {
		if err := binio.PutVarint(w, ref-prev); err != nil {
			return err
		}
		prev = ref
	}
	if err := binio.PutUvarint(w, uint64(wy.Type)); err != nil {
		return err
	}
	areaFlag := byte(0)
	if wy.IsArea {
		areaFlag = 1
	}
	if err := w.WriteByte(areaFlag); err != nil {
		return fmt.Errorf("write area flag: %w", importerrors.ErrIO)
	}
	return writeTags(w, wy.Tags)
}

// DecodeRawWay reverses RawWay.Encode.
func DecodeRawWay(r *bufio.Reader) (RawWay, error) {
	osmID, err := binio.ReadVarint(r)
	if err != nil {
		return RawWay{}, err
	}
	count, err := binio.ReadUvarint(r)
	if err != nil {
		return RawWay{}, err
	}
	refs := make([]int64, count)
	var prev int64
	for i := range refs {
		delta, err := binio.ReadVarint(r)
		if err != nil {
			return RawWay{}, err
		}
		prev += delta
		refs[i] = prev
	}
	typeVal, err := binio.ReadUvarint(r)
	if err != nil {
		return RawWay{}, err
	}
	areaFlag, err := r.ReadByte()
	if err != nil {
		return RawWay{}, fmt.Errorf("read area flag: %w", importerrors.ErrIO)
	}
	tags, err := readTags(r)
	if err != nil {
		return RawWay{}, err
	}
	return RawWay{OSMID: osmID, NodeRefs: refs, Type: typeinfo.TypeID(typeVal), IsArea: areaFlag == 1, Tags: tags}, nil
}

// Encode writes r to w: OSM id, type id, tags, member count + members.
func (r RawRelation) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, r.OSMID); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(r.Type)); err != nil {
		return err
	}
	if err := writeTags(w, r.Tags); err != nil {
		return err
	}
	if err := binio.PutUvarint(w, uint64(len(r.Members))); err != nil {
		return err
	}
	for _, m := range r.Members {
		if err := w.WriteByte(byte(m.Type)); err != nil {
			return fmt.Errorf("write member type: %w", importerrors.ErrIO)
		}
		if err := binio.PutVarint(w, m.ID); err != nil {
			return err
		}
		if err := writeString(w, m.Role); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes t: OSM id, kind byte, from/via/to ids.
func (t TurnRestriction) Encode(w *bufio.Writer) error {
	if err := binio.PutVarint(w, t.OSMID); err != nil {
		return err
	}
	if err := w.WriteByte(byte(t.Kind)); err != nil {
		return fmt.Errorf("write restriction kind: %w", importerrors.ErrIO)
	}
	if err := binio.PutVarint(w, t.FromWay); err != nil {
		return err
	}
	if err := binio.PutVarint(w, t.ViaNode); err != nil {
		return err
	}
	return binio.PutVarint(w, t.ToWay)
}

// DecodeTurnRestriction reverses TurnRestriction.Encode.
func DecodeTurnRestriction(r *bufio.Reader) (TurnRestriction, error) {
	id, err := binio.ReadVarint(r)
	if err != nil {
		return TurnRestriction{}, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return TurnRestriction{}, fmt.Errorf("read restriction kind: %w", importerrors.ErrIO)
	}
	from, err := binio.ReadVarint(r)
	if err != nil {
		return TurnRestriction{}, err
	}
	via, err := binio.ReadVarint(r)
	if err != nil {
		return TurnRestriction{}, err
	}
	to, err := binio.ReadVarint(r)
	if err != nil {
		return TurnRestriction{}, err
	}
	return TurnRestriction{OSMID: id, Kind: TurnRestrictionKind(kind), FromWay: from, ViaNode: via, ToWay: to}, nil
}

// DecodeRawRelation reverses RawRelation.Encode.
func DecodeRawRelation(r *bufio.Reader) (RawRelation, error) {
	osmID, err := binio.ReadVarint(r)
	if err != nil {
		return RawRelation{}, err
	}
	typeVal, err := binio.ReadUvarint(r)
	if err != nil {
		return RawRelation{}, err
	}
	tags, err := readTags(r)
	if err != nil {
		return RawRelation{}, err
	}
	count, err := binio.ReadUvarint(r)
	if err != nil {
		return RawRelation{}, err
	}
	members := make([]RawRelationMember, count)
	for i := range members {
		mt, err := r.ReadByte()
		if err != nil {
			return RawRelation{}, fmt.Errorf("read member type: %w", importerrors.ErrIO)
		}
		id, err := binio.ReadVarint(r)
		if err != nil {
			return RawRelation{}, err
		}
		role, err := readString(r)
		if err != nil {
			return RawRelation{}, err
		}
		members[i] = RawRelationMember{Type: RelationMemberType(mt), ID: id, Role: role}
	}
	return RawRelation{OSMID: osmID, Type: typeinfo.TypeID(typeVal), Tags: tags, Members: members}, nil
}
