package storage

import (
	"bytes"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *Pager {
	t.Helper()
	dir := t.TempDir()
	p, fresh, err := Open(filepath.Join(dir, "idx.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !fresh {
		t.Fatalf("expected fresh file")
	}
	return p
}

func TestPager_ReadWriteRoundTrip(t *testing.T) {
	p := openTemp(t)
	defer p.Close()

	offs, err := p.Extend(2)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if len(offs) != 2 || offs[0] != 0 || offs[1] != PageSize {
		t.Fatalf("unexpected offsets: %v", offs)
	}

	buf := make([]byte, PageSize)
	copy(buf, []byte("hello page"))
	if err := p.WritePage(offs[1], buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := p.ReadPage(offs[1])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("round-trip mismatch")
	}
}

func TestPager_WritePageWrongSize(t *testing.T) {
	p := openTemp(t)
	defer p.Close()

	if err := p.WritePage(0, make([]byte, PageSize-1)); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestPager_ReopenExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.db")

	p1, fresh, err := Open(path)
	if err != nil || !fresh {
		t.Fatalf("open 1: fresh=%v err=%v", fresh, err)
	}
	if _, err := p1.Extend(1); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if err := p1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	p2, fresh2, err := Open(path)
	if err != nil {
		t.Fatalf("open 2: %v", err)
	}
	if fresh2 {
		t.Fatalf("expected non-fresh reopen")
	}
	defer p2.Close()
}
