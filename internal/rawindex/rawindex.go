// Package rawindex builds and serves by-id indices over the raw-way and
// raw-relation temporary files (step 4: "index temporary raw-way
// and raw-relation files by id"). Because preprocess is required to write
// those files in strictly increasing OSM-id order, the index is already
// sorted at build time and needs only a page list, not a full sort.
package rawindex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/osmscout-go/mapimport/internal/binio"
	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
)

// countingReader tracks how many bytes have been pulled from the
// underlying reader, so the offset of the next undecoded byte can be
// recovered as n - bufio.Reader.Buffered().
type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// Build scans rawPath (a RecordWriter-produced file whose records are
// already in ascending-id order) and writes idxPath: one (id, byte offset)
// pair per record. decodeID must consume exactly one record from r and
// return its id.
func Build(rawPath, idxPath string, decodeID func(r *bufio.Reader) (int64, error)) (int, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", rawPath, importerrors.ErrIO)
	}
	defer f.Close()

	count, err := binio.ReadUint32(f)
	if err != nil {
		return 0, fmt.Errorf("read header %s: %w", rawPath, importerrors.ErrFormatViolation)
	}

	cr := &countingReader{r: f, n: 4}
	br := bufio.NewReaderSize(cr, 1<<20)

	iw, err := binio.NewRecordWriter(idxPath)
	if err != nil {
		return 0, err
	}

	for i := uint32(0); i < count; i++ {
		offset := cr.n - uint64(br.Buffered())
		id, err := decodeID(br)
		if err != nil {
			_ = iw.Close()
			return 0, err
		}
		if err := binio.PutVarint(iw.Writer(), id); err != nil {
			return 0, err
		}
		if err := binio.PutUint64(iw.Writer(), offset); err != nil {
			return 0, err
		}
		iw.Advance(1)
	}

	return int(count), iw.Close()
}

// ScanWithOffset walks every record in path, in order, invoking fn with a
// reader positioned at the record and the byte offset that record starts
// at. fn must consume exactly one record. Used by the spatial index
// builders, which need each object's byte offset to populate their bitmap
// offset lists.
func ScanWithOffset(path string, fn func(r *bufio.Reader, offset uint64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, importerrors.ErrIO)
	}
	defer f.Close()

	count, err := binio.ReadUint32(f)
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, importerrors.ErrFormatViolation)
	}

	cr := &countingReader{r: f, n: 4}
	br := bufio.NewReaderSize(cr, 1<<20)

	for i := uint32(0); i < count; i++ {
		offset := cr.n - uint64(br.Buffered())
		if err := fn(br, offset); err != nil {
			return err
		}
	}
	return nil
}

// BuildSorted is like Build but does not assume rawPath's records are
// already in ascending-id order (e.g. ways.dat after merging, whose
// surviving ids are no longer monotonic): it collects every (id, offset)
// pair in memory, sorts by id, then writes the index.
func BuildSorted(rawPath, idxPath string, decodeID func(r *bufio.Reader) (int64, error)) (int, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", rawPath, importerrors.ErrIO)
	}
	defer f.Close()

	count, err := binio.ReadUint32(f)
	if err != nil {
		return 0, fmt.Errorf("read header %s: %w", rawPath, importerrors.ErrFormatViolation)
	}

	cr := &countingReader{r: f, n: 4}
	br := bufio.NewReaderSize(cr, 1<<20)

	type entry struct {
		id  int64
		off uint64
	}
	entries := make([]entry, 0, count)
	for i := uint32(0); i < count; i++ {
		offset := cr.n - uint64(br.Buffered())
		id, err := decodeID(br)
		if err != nil {
			return 0, err
		}
		entries = append(entries, entry{id: id, off: offset})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })

	iw, err := binio.NewRecordWriter(idxPath)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if err := binio.PutVarint(iw.Writer(), e.id); err != nil {
			return 0, err
		}
		if err := binio.PutUint64(iw.Writer(), e.off); err != nil {
			return 0, err
		}
		iw.Advance(1)
	}
	return len(entries), iw.Close()
}

// Index is a loaded (id, offset) page list supporting lookups into the raw
// file it was built from.
type Index struct {
	f    *os.File
	ids  []int64
	offs []uint64
}

// Open loads idxPath into memory and keeps rawPath open for seeking reads.
func Open(rawPath, idxPath string) (*Index, error) {
	f, err := os.Open(rawPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rawPath, importerrors.ErrIO)
	}
	ir, err := binio.NewRecordReader(idxPath)
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
	return &Index{f: f, ids: ids, offs: offs}, nil
}

// Offset returns the byte offset of id's record, and whether it was found.
func (idx *Index) Offset(id int64) (uint64, bool) {
	lo, hi := 0, len(idx.ids)
	for lo < hi {
		mid := (lo + hi) / 2
		if idx.ids[mid] < id {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(idx.ids) && idx.ids[lo] == id {
		return idx.offs[lo], true
	}
	return 0, false
}

// Decode seeks to id's record and decodes it with decode.
func (idx *Index) Decode(id int64, decode func(r *bufio.Reader) error) (bool, error) {
	off, ok := idx.Offset(id)
	if !ok {
		return false, nil
	}
	if _, err := idx.f.Seek(int64(off), 0); err != nil {
		return false, fmt.Errorf("seek %v: %w", id, importerrors.ErrIO)
	}
	return true, decode(bufio.NewReader(idx.f))
}

func (idx *Index) Close() error { return idx.f.Close() }
