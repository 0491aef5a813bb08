package bptree

import (
	"testing"

	"bptreeidx/pkg/storage"
)

func TestHeader_RoundTrip(t *testing.T) {
	h := fileHeader{FreeHead: 4096, Root: storage.NoOffset, PageCount: 11}
	got := unmarshalHeader(marshalHeader(h))
	if got != h {
		t.Fatalf("got %+v, want %+v", got, h)
	}
}

func TestHeader_PageIsFullSize(t *testing.T) {
	buf := marshalHeader(fileHeader{})
	if len(buf) != storage.PageSize {
		t.Fatalf("header page is %d bytes, want %d", len(buf), storage.PageSize)
	}
}
