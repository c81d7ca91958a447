//go:build !linux

package binio

import (
	"fmt"
	"os"

	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
)

// MappedFile falls back to a plain in-memory read on platforms without the
// unix mmap syscalls wired up (the importer's memory-mapped mode is a
// performance option, not a correctness requirement).
type MappedFile struct {
	data []byte
}

func OpenMapped(path string) (*MappedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, importerrors.ErrIO)
	}
	return &MappedFile{data: data}, nil
}

func (m *MappedFile) Bytes() []byte { return m.data }

func (m *MappedFile) At(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return nil, fmt.Errorf("mmap range [%d,%d) out of bounds (size %d): %w", offset, offset+length, len(m.data), importerrors.ErrIO)
	}
	return m.data[offset : offset+length], nil
}

func (m *MappedFile) Close() error { return nil }
