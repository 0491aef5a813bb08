package bptree

import "bptreeidx/pkg/storage"

// cut returns ceil(length/2), the classic split point used by the
// internal split routine and the minimum-occupancy thresholds below.
func cut(length int) int {
	if length%2 == 0 {
		return length / 2
	}
	return length/2 + 1
}

// Minimum occupancy after a delete, and the merge-vs-redistribute
// capacity thresholds.
var (
	leafMinKeys     = cut(leafMaxKeys)
	internalMinKeys = cut(InternalOrder) - 1
)

const (
	leafMergeCapacity     = LeafOrder
	internalMergeCapacity = InternalOrder - 1
)

// childIndex returns the position of child within the full children
// list of an internal node (leftmost is position 0), or -1 if child
// does not appear there.
func childIndex(leftmost storage.Offset, entries []internalEntry, child storage.Offset) int {
	if leftmost == child {
		return 0
	}
	for i, e := range entries {
		if e.Child == child {
			return i + 1
		}
	}
	return -1
}

// insertInternalEntry returns entries with (key, right) inserted at
// position p, per the convention that position 0 means "just after the
// leftmost child" and position i>0 means "just after entries[i-1]".
func insertInternalEntry(entries []internalEntry, p int, key int64, right storage.Offset) []internalEntry {
	out := make([]internalEntry, 0, len(entries)+1)
	out = append(out, entries[:p]...)
	out = append(out, internalEntry{Key: key, Child: right})
	out = append(out, entries[p:]...)
	return out
}

// reparentChildren rewrites the parent field of every page in children
// to point at newParent.
func (t *Tree) reparentChildren(children []storage.Offset, newParent storage.Offset) error {
	for _, c := range children {
		buf, err := t.pager.readPage(c)
		if err != nil {
			return err
		}
		setNodeParent(buf, newParent)
		if err := t.pager.writePage(c, buf); err != nil {
			return err
		}
	}
	return nil
}
