// Package coordstore builds and serves the coordinate store keyed by OSM
// node id ("Coordinate store completeness" invariant): every
// OSM-id referenced by a raw way or relation member of kind way must be
// resolvable back to a coordinate here.
//
// The on-disk layout is a coord.dat file of OSMID-ascending (OSMID, lat,
// lon) records plus a page index (every pageSize records, the OSMID and
// byte offset of that page's first record) so lookups don't require
// loading the whole store into memory — mirroring the
// NumericIndexPageSize-tuned numeric indices configured via ImportParameter.
package coordstore

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/osmscout-go/mapimport/internal/binio"
	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
	"github.com/osmscout-go/mapimport/internal/rawdata"
)

// Build reads every RawCoord from rawCoordsPath, sorts by OSMID, and writes
// coordDatPath (the sorted coordinate records) plus indexPath (the page
// index), with one index entry every pageSize records.
func Build(rawCoordsPath, coordDatPath, indexPath string, pageSize int) (int, error) {
	if pageSize < 1 {
		pageSize = 4096
	}

	rr, err := binio.NewRecordReader(rawCoordsPath)
	if err != nil {
		return 0, err
	}
	coords := make([]rawdata.RawCoord, 0, rr.Count)
	for i := uint32(0); i < rr.Count; i++ {
		c, err := rawdata.DecodeRawCoord(rr.Reader())
		if err != nil {
			_ = rr.Close()
			return 0, err
		}
		coords = append(coords, c)
	}
	if err := rr.Close(); err != nil {
		return 0, err
	}

	sort.Slice(coords, func(i, j int) bool { return coords[i].OSMID < coords[j].OSMID })

	cw, err := binio.NewRecordWriter(coordDatPath)
	if err != nil {
		return 0, err
	}
	iw, err := binio.NewRecordWriter(indexPath)
	if err != nil {
		_ = cw.Close()
		return 0, err
	}

	var offset uint64 = 4 // past the 4-byte record-count header
	for i, c := range coords {
		if i%pageSize == 0 {
			if err := binio.PutVarint(iw.Writer(), c.OSMID); err != nil {
				return 0, err
			}
			if err := binio.PutUint64(iw.Writer(), offset); err != nil {
				return 0, err
			}
			iw.Advance(1)
		}
		before := offset
		if err := c.Encode(cw.Writer()); err != nil {
			return 0, err
		}
		cw.Advance(1)
		offset += recordByteLen(c)
		_ = before
	}

	if err := cw.Close(); err != nil {
		return 0, err
	}
	if err := iw.Close(); err != nil {
		return 0, err
	}
	return len(coords), nil
}

// recordByteLen mirrors the exact bytes RawCoord.Encode writes: a varint
// OSMID plus two fixed uint32s. Since coord.dat is written strictly
// sequentially here, we can compute this without a second buffered pass by
// re-encoding into a throwaway counting writer.
func recordByteLen(c rawdata.RawCoord) uint64 {
	cw := &countingWriter{}
	bw := bufio.NewWriter(cw)
	_ = c.Encode(bw)
	_ = bw.Flush()
	return uint64(cw.n)
}

type countingWriter struct{ n int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

// Store serves point lookups against a store built by Build.
type Store struct {
	f         *os.File
	pageIDs   []int64
	pageOffs  []uint64
}

// Open loads the page index into memory and keeps coordDatPath open for
// seeking reads.
func Open(coordDatPath, indexPath string) (*Store, error) {
	f, err := os.Open(coordDatPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", coordDatPath, importerrors.ErrIO)
	}

	ir, err := binio.NewRecordReader(indexPath)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	ids := make([]int64, 0, ir.Count)
	offs := make([]uint64, 0, ir.Count)
	for i := uint32(0); i < ir.Count; i++ {
		id, err := binio.ReadVarint(ir.Reader())
		if err != nil {
			_ = f.Close()
			_ = ir.Close()
			return nil, err
		}
		off, err := binio.ReadUint64(ir.Reader())
		if err != nil {
			_ = f.Close()
			_ = ir.Close()
			return nil, err
		}
		ids = append(ids, id)
		offs = append(offs, off)
	}
	if err := ir.Close(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Store{f: f, pageIDs: ids, pageOffs: offs}, nil
}

// Lookup resolves a single OSM id to its coordinate, scanning forward from
// the page containing it.
func (s *Store) Lookup(osmID int64) (rawdata.RawCoord, bool, error) {
	if len(s.pageIDs) == 0 {
		return rawdata.RawCoord{}, false, nil
	}
	page := sort.Search(len(s.pageIDs), func(i int) bool { return s.pageIDs[i] > osmID }) - 1
	if page < 0 {
		page = 0
	}
	if _, err := s.f.Seek(int64(s.pageOffs[page]), 0); err != nil {
		return rawdata.RawCoord{}, false, fmt.Errorf("seek coord store: %w", importerrors.ErrIO)
	}
	br := bufio.NewReader(s.f)
	for {
		c, err := rawdata.DecodeRawCoord(br)
		if err != nil {
			return rawdata.RawCoord{}, false, nil
		}
		if c.OSMID == osmID {
			return c, true, nil
		}
		if c.OSMID > osmID {
			return rawdata.RawCoord{}, false, nil
		}
	}
}

// BulkLookup resolves many ids at once via a single forward scan, which is
// far cheaper than len(ids) random seeks when ids are mostly ascending
// (the common case: a way's node references are usually geographically and
// numerically clustered).
func (s *Store) BulkLookup(ids []int64) (map[int64]rawdata.RawCoord, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[int64]rawdata.RawCoord, len(ids))
	if len(sorted) == 0 {
		return out, nil
	}
	if _, err := s.f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek coord store: %w", importerrors.ErrIO)
	}
	br := bufio.NewReaderSize(s.f, 1<<20)
	if _, err := binio.ReadUint32(br); err != nil {
		return nil, fmt.Errorf("read coord store header: %w", importerrors.ErrFormatViolation)
	}

	i := 0
	for i < len(sorted) {
		c, err := rawdata.DecodeRawCoord(br)
		if err != nil {
			break
		}
		for i < len(sorted) && sorted[i] < c.OSMID {
			i++
		}
		for i < len(sorted) && sorted[i] == c.OSMID {
			out[c.OSMID] = c
			i++
		}
	}
	return out, nil
}

func (s *Store) Close() error { return s.f.Close() }
