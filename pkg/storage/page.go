// Package storage implements the lowest layer of the index: a fixed
// 4 KiB page abstraction over a single file, addressed by byte offset
// rather than by page number. Offset 0 is reserved for the caller's
// header page; everything else is whatever the caller decides to put
// there.
//
// Every read and write goes through ReadAt/WriteAt, so callers never
// share (or fight over) the file's cursor position, and no page is ever
// cached here — each call is one positioned syscall.
package storage

import (
	"os"

	"github.com/pkg/errors"
)

// PageSize is the fixed size, in bytes, of every page in the file.
const PageSize = 4096

// Offset addresses a page by its byte position in the file. NoOffset is
// the sentinel for "no page" (the all-ones convention from the on-disk
// format, represented here as -1).
type Offset int64

// NoOffset denotes the absence of a page reference.
const NoOffset Offset = -1

// Pager owns the backing file and performs positioned page I/O. It has
// no notion of B+ tree structure; it only knows how to read and write
// PageSize-byte windows and how to grow the file by whole pages.
type Pager struct {
	f *os.File
}

// Open opens path for read/write, creating it if it does not exist.
// fresh reports whether the file was empty (size 0) at open time, which
// the caller uses to decide whether to format a new header and free
// list or to read an existing one.
func Open(path string) (p *Pager, fresh bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, errors.Wrapf(err, "storage: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, errors.Wrapf(err, "storage: stat %s", path)
	}
	return &Pager{f: f}, info.Size() == 0, nil
}

// ReadPage reads the PageSize bytes at off.
func (p *Pager) ReadPage(off Offset) ([]byte, error) {
	buf := make([]byte, PageSize)
	if _, err := p.f.ReadAt(buf, int64(off)); err != nil {
		return nil, errors.Wrapf(err, "storage: read page at %d", off)
	}
	return buf, nil
}

// WritePage writes buf, which must be exactly PageSize bytes, at off.
func (p *Pager) WritePage(off Offset, buf []byte) error {
	if len(buf) != PageSize {
		return errors.Errorf("storage: write page at %d: buffer is %d bytes, want %d", off, len(buf), PageSize)
	}
	if _, err := p.f.WriteAt(buf, int64(off)); err != nil {
		return errors.Wrapf(err, "storage: write page at %d", off)
	}
	return nil
}

// Extend appends n zeroed pages to the end of the file and returns their
// offsets in ascending order.
func (p *Pager) Extend(n int) ([]Offset, error) {
	info, err := p.f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "storage: stat for extend")
	}
	start := Offset(info.Size())
	zero := make([]byte, PageSize)
	offsets := make([]Offset, n)
	for i := 0; i < n; i++ {
		off := start + Offset(i*PageSize)
		if _, err := p.f.WriteAt(zero, int64(off)); err != nil {
			return nil, errors.Wrapf(err, "storage: extend: write page at %d", off)
		}
		offsets[i] = off
	}
	return offsets, nil
}

// Close closes the underlying file.
func (p *Pager) Close() error {
	return errors.Wrap(p.f.Close(), "storage: close")
}
