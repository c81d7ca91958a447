//go:build linux

package binio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
)

// MappedFile is a read-only memory-mapped view of a file, used when a
// stage's "<x>_memory_mapped" configuration option is enabled. Random
// access into a mapped raw-node/raw-way/raw-coord file avoids the syscall
// overhead of repeated pread calls during the merge/index stages.
type MappedFile struct {
	f    *os.File
	data []byte
}

// OpenMapped mmaps path read-only for its entire length.
func OpenMapped(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, importerrors.ErrIO)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, importerrors.ErrIO)
	}
	size := fi.Size()
	if size == 0 {
		return &MappedFile{f: f, data: nil}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, importerrors.ErrIO)
	}
	return &MappedFile{f: f, data: data}, nil
}

// Bytes returns the mapped region. Callers must not retain slices of it
// past Close.
func (m *MappedFile) Bytes() []byte { return m.data }

// At returns the byte slice [offset, offset+length) from the mapping.
func (m *MappedFile) At(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(m.data)) {
		return nil, fmt.Errorf("mmap range [%d,%d) out of bounds (size %d): %w", offset, offset+length, len(m.data), importerrors.ErrIO)
	}
	return m.data[offset : offset+length], nil
}

// Close unmaps and closes the underlying file.
func (m *MappedFile) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
	}
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
