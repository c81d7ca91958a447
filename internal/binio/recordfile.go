package binio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
)

// RecordWriter writes a record-count-prefixed file: a 4-byte placeholder
// count at offset 0, a stream of caller-encoded records, and a final
// seek-back-to-zero pass that overwrites the placeholder with the true
// count once the record total is known. This matches the on-disk layout
// used by every "*.dat" file this module writes.
type RecordWriter struct {
	f       *os.File
	w       *bufio.Writer
	count   uint32
	flushed bool
}

// NewRecordWriter creates (or truncates) path and reserves the 4-byte count
// header.
func NewRecordWriter(path string) (*RecordWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, importerrors.ErrIO)
	}
	if err := PutUint32(f, 0); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("reserve header %s: %w", path, importerrors.ErrIO)
	}
	return &RecordWriter{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// Writer exposes the buffered writer for record encoding helpers
// (PutUvarint, PutUint64, ...).
func (rw *RecordWriter) Writer() *bufio.Writer { return rw.w }

// Advance increments the record count by n; callers call this once per
// logical record written through Writer().
func (rw *RecordWriter) Advance(n uint32) { rw.count += n }

// Count returns the number of records advanced so far.
func (rw *RecordWriter) Count() uint32 { return rw.count }

// Close flushes buffered output, seeks back to offset 0 to back-patch the
// true record count, and closes the underlying file. It must be called
// exactly once, after all records have been written.
func (rw *RecordWriter) Close() error {
	if rw.flushed {
		return nil
	}
	rw.flushed = true
	if err := rw.w.Flush(); err != nil {
		_ = rw.f.Close()
		return fmt.Errorf("flush: %w", importerrors.ErrIO)
	}
	if _, err := rw.f.Seek(0, io.SeekStart); err != nil {
		_ = rw.f.Close()
		return fmt.Errorf("seek header: %w", importerrors.ErrIO)
	}
	if err := PutUint32(rw.f, rw.count); err != nil {
		_ = rw.f.Close()
		return fmt.Errorf("back-patch header: %w", importerrors.ErrIO)
	}
	return rw.f.Close()
}

// RecordReader reads a file written by RecordWriter.
type RecordReader struct {
	f     *os.File
	r     *bufio.Reader
	Count uint32
}

// NewRecordReader opens path and reads the record-count header.
func NewRecordReader(path string) (*RecordReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, importerrors.ErrIO)
	}
	count, err := ReadUint32(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("read header %s: %w", path, importerrors.ErrFormatViolation)
	}
	return &RecordReader{f: f, r: bufio.NewReaderSize(f, 1<<20), Count: count}, nil
}

// Reader exposes the buffered reader for record decoding helpers.
func (rr *RecordReader) Reader() *bufio.Reader { return rr.r }

func (rr *RecordReader) Close() error { return rr.f.Close() }
