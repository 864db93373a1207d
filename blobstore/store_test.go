package blobstore

import (
	"bytes"
	"testing"

	"github.com/pagetree/pagetree/device"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dev := device.NewMemDevice()
	return New(dev, 64)
}

func TestAllocateAndReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello, this is a blob payload that exceeds a small inline record")
	offset, err := s.Allocate(data, 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	got, err := s.Read(offset)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch: got %q want %q", got, data)
	}
}

func TestOverwriteGrowsInPlaceWithinSlack(t *testing.T) {
	s := newTestStore(t)
	offset, err := s.Allocate([]byte("short"), 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	newOffset, err := s.Overwrite(offset, []byte("still fits"), 0)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if newOffset != offset {
		t.Fatalf("expected grow-in-place to keep offset %d, got %d", offset, newOffset)
	}
	got, err := s.Read(offset)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "still fits" {
		t.Fatalf("unexpected payload after grow-in-place: %q", got)
	}
}

func TestOverwriteRelocatesWhenSlackExhausted(t *testing.T) {
	s := newTestStore(t)
	offset, err := s.Allocate([]byte("short"), 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	big := bytes.Repeat([]byte("x"), 500)
	newOffset, err := s.Overwrite(offset, big, 0)
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if newOffset == offset {
		t.Fatalf("expected relocation for an oversized overwrite")
	}
	got, err := s.Read(newOffset)
	if err != nil {
		t.Fatalf("read after relocation: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Fatalf("payload mismatch after relocation")
	}
	if _, err := s.Read(offset); err == nil {
		t.Fatalf("expected reading a freed blob to fail")
	}
}

func TestFreeAndReuseViaFreeList(t *testing.T) {
	s := newTestStore(t)
	offset, err := s.Allocate([]byte("aaaa"), 0)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := s.Free(offset); err != nil {
		t.Fatalf("free: %v", err)
	}
	reused, err := s.Allocate([]byte("bbbb"), 0)
	if err != nil {
		t.Fatalf("allocate after free: %v", err)
	}
	if reused != offset {
		t.Fatalf("expected free list reuse of offset %d, got %d", offset, reused)
	}
}

func TestReadFreedBlobFails(t *testing.T) {
	s := newTestStore(t)
	offset, _ := s.Allocate([]byte("data"), 0)
	if err := s.Free(offset); err != nil {
		t.Fatalf("free: %v", err)
	}
	if _, err := s.Read(offset); err == nil {
		t.Fatalf("expected error reading a freed blob")
	}
}
