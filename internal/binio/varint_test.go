package binio

import (
	"bytes"
	"testing"
)

func TestUvarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40, ^uint64(0)}
	for _, v := range cases {
		var buf bytes.Buffer
		if err := PutUvarint(&buf, v); err != nil {
			t.Fatalf("PutUvarint(%d): %v", v, err)
		}
		got, err := ReadUvarint(&buf)
		if err != nil {
			t.Fatalf("ReadUvarint(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: want %d got %d", v, got)
		}
	}
}

func TestVarintRoundTripNegative(t *testing.T) {
	cases := []int64{0, -1, 1, -128, 128, -1 << 30, 1 << 30}
	for _, v := range cases {
		var buf bytes.Buffer
		if err := PutVarint(&buf, v); err != nil {
			t.Fatalf("PutVarint(%d): %v", v, err)
		}
		got, err := ReadVarint(&buf)
		if err != nil {
			t.Fatalf("ReadVarint(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: want %d got %d", v, got)
		}
	}
}

func TestFixedWidthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := PutUint32(&buf, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if err := PutUint64(&buf, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	v32, err := ReadUint32(&buf)
	if err != nil || v32 != 0xdeadbeef {
		t.Fatalf("ReadUint32: got %x err %v", v32, err)
	}
	v64, err := ReadUint64(&buf)
	if err != nil || v64 != 0x0102030405060708 {
		t.Fatalf("ReadUint64: got %x err %v", v64, err)
	}
}
