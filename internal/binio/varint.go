// Package binio implements the little-endian and variable-length integer
// encodings shared by every on-disk OSM object file, plus record-oriented
// file helpers (record-count header with seek-back-to-zero back-patching)
// and an optional mmap-backed reader for the "*_memory_mapped" configuration
// options.
package binio

import (
	"encoding/binary"
	"io"
)

// PutUvarint writes v to w using the LEB128-style variable length encoding:
// each byte carries 7 bits of payload plus a continuation bit in the high
// position, least-significant group first.
func PutUvarint(w io.ByteWriter, v uint64) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

// ReadUvarint reads a value written by PutUvarint.
func ReadUvarint(r io.ByteReader) (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, io.ErrUnexpectedEOF
		}
	}
}

// PutVarint zig-zag encodes a signed value and writes it with PutUvarint, so
// small-magnitude negative numbers (common in delta-encoded coordinate
// streams) stay compact.
func PutVarint(w io.ByteWriter, v int64) error {
	uv := uint64(v) << 1
	if v < 0 {
		uv = ^uv
	}
	return PutUvarint(w, uv)
}

// ReadVarint reverses PutVarint.
func ReadVarint(r io.ByteReader) (int64, error) {
	uv, err := ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	v := int64(uv >> 1)
	if uv&1 != 0 {
		v = ^v
	}
	return v, nil
}

// PutUint32/PutUint64 write fixed-width little-endian integers, used for
// record-count headers and other fields the format requires at a known
// offset (so they can be seeked to and overwritten later).
func PutUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func PutUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
