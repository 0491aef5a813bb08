package bptree

import (
	"log"

	"bptreeidx/pkg/storage"
)

// Insert adds (key, value) to the tree. It returns ErrDuplicateKey if
// key is already present.
func (t *Tree) Insert(key int64, value Value) error {
	if err := t.insert(key, value); err != nil {
		return err
	}
	return t.verifyIfConfigured()
}

func (t *Tree) insert(key int64, value Value) error {
	h, err := t.pager.readHeader()
	if err != nil {
		return err
	}

	if h.Root == storage.NoOffset {
		root, err := t.pager.allocatePage()
		if err != nil {
			return err
		}
		buf := newNodePage(storage.NoOffset, true)
		writeLeafEntries(buf, []leafEntry{{Key: key, Value: value}})
		if err := t.pager.writePage(root, buf); err != nil {
			return err
		}
		h.Root = root
		return t.pager.writeHeader(h)
	}

	leaf, err := t.findLeaf(h.Root, key)
	if err != nil {
		return err
	}
	buf, err := t.pager.readPage(leaf)
	if err != nil {
		return err
	}
	entries := readLeafEntries(buf)
	if findInLeaf(entries, key) >= 0 {
		return ErrDuplicateKey
	}
	entries = insertLeafEntry(entries, key, value)

	if len(entries) <= leafMaxKeys {
		writeLeafEntries(buf, entries)
		return t.pager.writePage(leaf, buf)
	}
	return t.splitLeafAndInsert(leaf, buf, entries)
}

func insertLeafEntry(entries []leafEntry, key int64, value Value) []leafEntry {
	i := 0
	for i < len(entries) && entries[i].Key < key {
		i++
	}
	out := make([]leafEntry, 0, len(entries)+1)
	out = append(out, entries[:i]...)
	out = append(out, leafEntry{Key: key, Value: value})
	out = append(out, entries[i:]...)
	return out
}

// splitLeafAndInsert handles a leaf that now holds LeafOrder entries
// (one too many). It splits the full sorted run evenly in half -
// LeafOrder is even, so both halves get LeafOrder/2 entries - unlike
// the uneven split some bpt.c derivatives use.
func (t *Tree) splitLeafAndInsert(leafOff storage.Offset, leafBuf []byte, entries []leafEntry) error {
	mid := LeafOrder / 2
	left := entries[:mid]
	right := entries[mid:]

	rightOff, err := t.pager.allocatePage()
	if err != nil {
		return err
	}

	oldNext := leafNextSibling(leafBuf)
	parent := nodeParent(leafBuf)

	writeLeafEntries(leafBuf, left)
	setLeafNextSibling(leafBuf, rightOff)
	if err := t.pager.writePage(leafOff, leafBuf); err != nil {
		return err
	}

	rightBuf := newNodePage(parent, true)
	writeLeafEntries(rightBuf, right)
	setLeafNextSibling(rightBuf, oldNext)
	if err := t.pager.writePage(rightOff, rightBuf); err != nil {
		return err
	}

	return t.insertIntoParent(leafOff, right[0].Key, rightOff, parent)
}

// insertIntoParent links a freshly split pair (left, right) - separated
// by key - into left's parent, splitting the parent in turn if needed.
// parent is storage.NoOffset when left was the root, in which case a
// new root is created above both.
func (t *Tree) insertIntoParent(left storage.Offset, key int64, right storage.Offset, parent storage.Offset) error {
	if parent == storage.NoOffset {
		return t.createNewRoot(left, key, right)
	}

	parentBuf, err := t.pager.readPage(parent)
	if err != nil {
		return err
	}
	leftmost, entries := readInternalEntries(parentBuf)
	p := childIndex(leftmost, entries, left)
	entries = insertInternalEntry(entries, p, key, right)

	if err := t.reparentChildren([]storage.Offset{right}, parent); err != nil {
		return err
	}

	if len(entries) <= internalMaxKeys {
		writeInternalEntries(parentBuf, leftmost, entries)
		return t.pager.writePage(parent, parentBuf)
	}
	return t.splitInternalAndInsert(parent, parentBuf, leftmost, entries)
}

func (t *Tree) createNewRoot(left storage.Offset, key int64, right storage.Offset) error {
	rootOff, err := t.pager.allocatePage()
	if err != nil {
		return err
	}
	rootBuf := newNodePage(storage.NoOffset, false)
	writeInternalEntries(rootBuf, left, []internalEntry{{Key: key, Child: right}})
	if err := t.pager.writePage(rootOff, rootBuf); err != nil {
		return err
	}
	if err := t.reparentChildren([]storage.Offset{left, right}, rootOff); err != nil {
		return err
	}
	h, err := t.pager.readHeader()
	if err != nil {
		return err
	}
	h.Root = rootOff
	log.Printf("bptree: growing tree height, new root at page %d", rootOff)
	return t.pager.writeHeader(h)
}

// splitInternalAndInsert handles an internal node overflowing to
// InternalOrder entries (one more than internalMaxKeys). The key at the
// cut point is promoted to the grandparent rather than kept in either
// half.
func (t *Tree) splitInternalAndInsert(nodeOff storage.Offset, buf []byte, leftmost storage.Offset, entries []internalEntry) error {
	split := cut(InternalOrder)
	leftEntries := entries[:split-1]
	promoted := entries[split-1]
	rightEntries := entries[split:]

	parent := nodeParent(buf)

	writeInternalEntries(buf, leftmost, leftEntries)
	if err := t.pager.writePage(nodeOff, buf); err != nil {
		return err
	}

	rightOff, err := t.pager.allocatePage()
	if err != nil {
		return err
	}
	rightBuf := newNodePage(parent, false)
	writeInternalEntries(rightBuf, promoted.Child, rightEntries)
	if err := t.pager.writePage(rightOff, rightBuf); err != nil {
		return err
	}
	if err := t.reparentChildren(allChildren(promoted.Child, rightEntries), rightOff); err != nil {
		return err
	}

	return t.insertIntoParent(nodeOff, promoted.Key, rightOff, parent)
}
