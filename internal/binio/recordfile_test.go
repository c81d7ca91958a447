package binio

import (
	"path/filepath"
	"testing"
)

func TestRecordWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.dat")

	w, err := NewRecordWriter(path)
	if err != nil {
		t.Fatalf("NewRecordWriter: %v", err)
	}
	for i := uint64(0); i < 5; i++ {
		if err := PutUvarint(w.Writer(), i*7); err != nil {
			t.Fatalf("write record %d: %v", i, err)
		}
		w.Advance(1)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewRecordReader(path)
	if err != nil {
		t.Fatalf("NewRecordReader: %v", err)
	}
	defer r.Close()

	if r.Count != 5 {
		t.Fatalf("expected count 5, got %d", r.Count)
	}
	for i := uint64(0); i < 5; i++ {
		v, err := ReadUvarint(r.Reader())
		if err != nil {
			t.Fatalf("read record %d: %v", i, err)
		}
		if v != i*7 {
			t.Fatalf("record %d: want %d got %d", i, i*7, v)
		}
	}
}
