package bptree

import (
	"encoding/binary"
	"log"

	"github.com/pkg/errors"

	"bptreeidx/pkg/bptreeconfig"
	"bptreeidx/pkg/storage"
)

// pager sits between the tree logic and the raw page layer. It owns the
// file header (free_head/root/page_count) and the free-page list, and
// never holds a page in memory between calls: every public method
// re-reads the header from disk and writes it back after any mutation.
type pager struct {
	sp   *storage.Pager
	opts bptreeconfig.Options
}

func openPager(path string, opts bptreeconfig.Options) (*pager, error) {
	sp, fresh, err := storage.Open(path)
	if err != nil {
		return nil, wrapIOError("open", err)
	}
	p := &pager{sp: sp, opts: opts}
	if fresh {
		if err := p.format(); err != nil {
			sp.Close()
			return nil, err
		}
	}
	return p, nil
}

func (p *pager) close() error {
	return wrapIOError("close", p.sp.Close())
}

// readPage and writePage are the tree logic's only way into the storage
// package; they, like the open, close and extend calls made by this
// file, wrap every failure as an *IOError, so every I/O failure the rest
// of this package sees is already an *IOError.
func (p *pager) readPage(off storage.Offset) ([]byte, error) {
	buf, err := p.sp.ReadPage(off)
	if err != nil {
		return nil, wrapIOError("read page", err)
	}
	return buf, nil
}

func (p *pager) writePage(off storage.Offset, buf []byte) error {
	return wrapIOError("write page", p.sp.WritePage(off, buf))
}

func (p *pager) readHeader() (fileHeader, error) {
	buf, err := p.readPage(0)
	if err != nil {
		return fileHeader{}, err
	}
	return unmarshalHeader(buf), nil
}

func (p *pager) writeHeader(h fileHeader) error {
	return p.writePage(0, marshalHeader(h))
}

// format lays out a brand-new file: the header page at offset 0, and a
// free list of Options.FreeListBatch linked pages starting right after
// it.
func (p *pager) format() error {
	batch := p.opts.FreeListBatch
	offs, err := p.sp.Extend(1 + batch)
	if err != nil {
		return wrapIOError("extend", err)
	}
	// offs[0] is the header page itself; the free list starts at offs[1].
	freePages := offs[1:]
	if err := p.linkFreeChain(freePages, storage.NoOffset); err != nil {
		return err
	}
	h := fileHeader{
		FreeHead:  freePages[0],
		Root:      storage.NoOffset,
		PageCount: uint64(len(offs)),
	}
	return p.writeHeader(h)
}

// linkFreeChain writes each page in pages so that its next-pointer is
// the page after it, and the last page's next-pointer is tail.
func (p *pager) linkFreeChain(pages []storage.Offset, tail storage.Offset) error {
	for i, off := range pages {
		next := tail
		if i+1 < len(pages) {
			next = pages[i+1]
		}
		if err := p.writeFreePage(off, next); err != nil {
			return err
		}
	}
	return nil
}

func (p *pager) writeFreePage(off, next storage.Offset) error {
	buf := make([]byte, storage.PageSize)
	putOffset(buf[0:8], next)
	return p.writePage(off, buf)
}

func freePageNext(buf []byte) storage.Offset {
	return getOffset(buf[0:8])
}

// allocatePage pops one page off the free list, extending the list
// first if it is down to its last page.
// The returned page's contents are whatever was last written there;
// the caller must initialize it before linking it into the tree.
func (p *pager) allocatePage() (storage.Offset, error) {
	h, err := p.readHeader()
	if err != nil {
		return 0, err
	}
	if h.FreeHead == storage.NoOffset {
		return 0, errors.New("bptree: free list exhausted")
	}

	headBuf, err := p.readPage(h.FreeHead)
	if err != nil {
		return 0, err
	}
	headNext := freePageNext(headBuf)

	if headNext == storage.NoOffset {
		batch := p.opts.FreeListBatch
		fresh, err := p.sp.Extend(batch)
		if err != nil {
			return 0, wrapIOError("extend", err)
		}
		if err := p.linkFreeChain(fresh, storage.NoOffset); err != nil {
			return 0, err
		}
		if err := p.writeFreePage(h.FreeHead, fresh[0]); err != nil {
			return 0, err
		}
		headNext = fresh[0]
		h.PageCount += uint64(len(fresh))
		log.Printf("bptree: free list exhausted, extended by %d pages (page_count=%d)", batch, h.PageCount)
	}

	old := h.FreeHead
	h.FreeHead = headNext
	if err := p.writeHeader(h); err != nil {
		return 0, err
	}
	return old, nil
}

// releasePage pushes off back onto the head of the free list.
func (p *pager) releasePage(off storage.Offset) error {
	h, err := p.readHeader()
	if err != nil {
		return err
	}
	if err := p.writeFreePage(off, h.FreeHead); err != nil {
		return err
	}
	h.FreeHead = off
	return p.writeHeader(h)
}

func putOffset(b []byte, off storage.Offset) {
	binary.LittleEndian.PutUint64(b, uint64(int64(off)))
}

func getOffset(b []byte) storage.Offset {
	return storage.Offset(int64(binary.LittleEndian.Uint64(b)))
}
