package bptree

import (
	"log"

	"bptreeidx/pkg/storage"
)

// Delete removes key from the tree. It returns ErrNotFound if the key
// is absent.
func (t *Tree) Delete(key int64) error {
	if err := t.delete(key); err != nil {
		return err
	}
	return t.verifyIfConfigured()
}

func (t *Tree) delete(key int64) error {
	h, err := t.pager.readHeader()
	if err != nil {
		return err
	}
	if h.Root == storage.NoOffset {
		return ErrNotFound
	}
	leaf, err := t.findLeaf(h.Root, key)
	if err != nil {
		return err
	}
	if leaf == storage.NoOffset {
		return ErrNotFound
	}
	buf, err := t.pager.readPage(leaf)
	if err != nil {
		return err
	}
	if findInLeaf(readLeafEntries(buf), key) < 0 {
		return ErrNotFound
	}
	return t.deleteEntry(leaf, key)
}

// deleteEntry removes key from node - a live (key, value) pair if node
// is a leaf, or a (key, child) separator pair if node is internal (the
// path taken when a merge propagates a removal upward) - then repairs
// underflow: nothing below the minimum occupancy is
// left in the tree.
func (t *Tree) deleteEntry(node storage.Offset, key int64) error {
	buf, err := t.pager.readPage(node)
	if err != nil {
		return err
	}
	isLeaf := nodeIsLeaf(buf)
	if isLeaf {
		entries := readLeafEntries(buf)
		idx := findInLeaf(entries, key)
		if idx < 0 {
			return ErrCorruption
		}
		entries = append(entries[:idx], entries[idx+1:]...)
		writeLeafEntries(buf, entries)
	} else {
		leftmost, entries := readInternalEntries(buf)
		idx := -1
		for i, e := range entries {
			if e.Key == key {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrCorruption
		}
		entries = append(entries[:idx], entries[idx+1:]...)
		writeInternalEntries(buf, leftmost, entries)
	}
	if err := t.pager.writePage(node, buf); err != nil {
		return err
	}

	h, err := t.pager.readHeader()
	if err != nil {
		return err
	}
	if node == h.Root {
		return t.adjustRoot(node)
	}

	numKeys := nodeNumKeys(buf)
	minKeys := internalMinKeys
	if isLeaf {
		minKeys = leafMinKeys
	}
	if numKeys >= minKeys {
		return nil
	}

	return t.fixUnderflow(node, buf, isLeaf)
}

// fixUnderflow borrows from a sibling if one has room to spare, or
// merges with it otherwise. node/buf must already be below minimum
// occupancy and not be the root.
func (t *Tree) fixUnderflow(node storage.Offset, buf []byte, isLeaf bool) error {
	parent := nodeParent(buf)
	pBuf, err := t.pager.readPage(parent)
	if err != nil {
		return err
	}
	pLeftmost, pEntries := readInternalEntries(pBuf)
	myIdx := childIndex(pLeftmost, pEntries, node)

	// neighborIdx is this node's left sibling's position among the
	// parent's children, or -1 if node is the leftmost child (in which
	// case its only neighbor is to the right).
	neighborIdx := myIdx - 1
	kPrimeIdx := neighborIdx
	if neighborIdx < 0 {
		kPrimeIdx = 0
	}
	kPrime := pEntries[kPrimeIdx].Key

	children := allChildren(pLeftmost, pEntries)
	var neighborOff storage.Offset
	if neighborIdx < 0 {
		neighborOff = children[myIdx+1]
	} else {
		neighborOff = children[neighborIdx]
	}

	neighborBuf, err := t.pager.readPage(neighborOff)
	if err != nil {
		return err
	}
	numKeys := nodeNumKeys(buf)
	neighborKeys := nodeNumKeys(neighborBuf)

	capacity := internalMergeCapacity
	if isLeaf {
		capacity = leafMergeCapacity
	}

	if neighborKeys+numKeys < capacity {
		left, right := neighborOff, node
		if neighborIdx < 0 {
			left, right = node, neighborOff
		}
		return t.coalesce(left, right, parent, kPrime)
	}

	if neighborIdx >= 0 {
		return t.borrowFromLeft(node, neighborOff, parent, kPrimeIdx)
	}
	return t.borrowFromRight(node, neighborOff, parent, kPrimeIdx)
}

// coalesce merges right's entries into left, always keeping the result
// in the left (lower-key) sibling's page and releasing right, then
// recurses on the parent to drop the separator that used to stand
// between them.
func (t *Tree) coalesce(left, right, parent storage.Offset, kPrime int64) error {
	leftBuf, err := t.pager.readPage(left)
	if err != nil {
		return err
	}
	rightBuf, err := t.pager.readPage(right)
	if err != nil {
		return err
	}

	if nodeIsLeaf(leftBuf) {
		merged := append(readLeafEntries(leftBuf), readLeafEntries(rightBuf)...)
		writeLeafEntries(leftBuf, merged)
		setLeafNextSibling(leftBuf, leafNextSibling(rightBuf))
	} else {
		leftLeftmost, leftEntries := readInternalEntries(leftBuf)
		rightLeftmost, rightEntries := readInternalEntries(rightBuf)
		merged := make([]internalEntry, 0, len(leftEntries)+1+len(rightEntries))
		merged = append(merged, leftEntries...)
		merged = append(merged, internalEntry{Key: kPrime, Child: rightLeftmost})
		merged = append(merged, rightEntries...)
		writeInternalEntries(leftBuf, leftLeftmost, merged)
		if err := t.reparentChildren(allChildren(rightLeftmost, rightEntries), left); err != nil {
			return err
		}
	}
	if err := t.pager.writePage(left, leftBuf); err != nil {
		return err
	}
	if err := t.pager.releasePage(right); err != nil {
		return err
	}

	return t.deleteEntry(parent, kPrime)
}

// borrowFromLeft moves the left sibling's last entry into node, which
// becomes node's new smallest entry, and fixes up the parent separator.
func (t *Tree) borrowFromLeft(node, left, parent storage.Offset, kPrimeIdx int) error {
	nodeBuf, err := t.pager.readPage(node)
	if err != nil {
		return err
	}
	leftBuf, err := t.pager.readPage(left)
	if err != nil {
		return err
	}
	pBuf, err := t.pager.readPage(parent)
	if err != nil {
		return err
	}
	pLeftmost, pEntries := readInternalEntries(pBuf)

	if nodeIsLeaf(nodeBuf) {
		nodeEntries := readLeafEntries(nodeBuf)
		leftEntries := readLeafEntries(leftBuf)
		borrowed := leftEntries[len(leftEntries)-1]
		leftEntries = leftEntries[:len(leftEntries)-1]
		nodeEntries = append([]leafEntry{borrowed}, nodeEntries...)
		writeLeafEntries(nodeBuf, nodeEntries)
		writeLeafEntries(leftBuf, leftEntries)
		pEntries[kPrimeIdx].Key = borrowed.Key
	} else {
		nodeLeftmost, nodeEntries := readInternalEntries(nodeBuf)
		leftLeftmost, leftEntries := readInternalEntries(leftBuf)
		borrowed := leftEntries[len(leftEntries)-1]
		leftEntries = leftEntries[:len(leftEntries)-1]
		kPrime := pEntries[kPrimeIdx].Key
		nodeEntries = append([]internalEntry{{Key: kPrime, Child: nodeLeftmost}}, nodeEntries...)
		writeInternalEntries(nodeBuf, borrowed.Child, nodeEntries)
		writeInternalEntries(leftBuf, leftLeftmost, leftEntries)
		if err := t.reparentChildren([]storage.Offset{borrowed.Child}, node); err != nil {
			return err
		}
		pEntries[kPrimeIdx].Key = borrowed.Key
	}

	if err := t.pager.writePage(node, nodeBuf); err != nil {
		return err
	}
	if err := t.pager.writePage(left, leftBuf); err != nil {
		return err
	}
	writeInternalEntries(pBuf, pLeftmost, pEntries)
	return t.pager.writePage(parent, pBuf)
}

// borrowFromRight moves the right sibling's first entry into node,
// which becomes node's new largest entry, and fixes up the parent
// separator.
func (t *Tree) borrowFromRight(node, right, parent storage.Offset, kPrimeIdx int) error {
	nodeBuf, err := t.pager.readPage(node)
	if err != nil {
		return err
	}
	rightBuf, err := t.pager.readPage(right)
	if err != nil {
		return err
	}
	pBuf, err := t.pager.readPage(parent)
	if err != nil {
		return err
	}
	pLeftmost, pEntries := readInternalEntries(pBuf)

	if nodeIsLeaf(nodeBuf) {
		nodeEntries := readLeafEntries(nodeBuf)
		rightEntries := readLeafEntries(rightBuf)
		borrowed := rightEntries[0]
		rightEntries = rightEntries[1:]
		nodeEntries = append(nodeEntries, borrowed)
		writeLeafEntries(nodeBuf, nodeEntries)
		writeLeafEntries(rightBuf, rightEntries)
		pEntries[kPrimeIdx].Key = rightEntries[0].Key
	} else {
		nodeLeftmost, nodeEntries := readInternalEntries(nodeBuf)
		rightLeftmost, rightEntries := readInternalEntries(rightBuf)
		kPrime := pEntries[kPrimeIdx].Key
		nodeEntries = append(nodeEntries, internalEntry{Key: kPrime, Child: rightLeftmost})
		if err := t.reparentChildren([]storage.Offset{rightLeftmost}, node); err != nil {
			return err
		}
		newRightLeftmost := rightEntries[0].Child
		newKPrime := rightEntries[0].Key
		rightEntries = rightEntries[1:]
		writeInternalEntries(nodeBuf, nodeLeftmost, nodeEntries)
		writeInternalEntries(rightBuf, newRightLeftmost, rightEntries)
		pEntries[kPrimeIdx].Key = newKPrime
	}

	if err := t.pager.writePage(node, nodeBuf); err != nil {
		return err
	}
	if err := t.pager.writePage(right, rightBuf); err != nil {
		return err
	}
	writeInternalEntries(pBuf, pLeftmost, pEntries)
	return t.pager.writePage(parent, pBuf)
}

// adjustRoot collapses the tree by one level when the root has been
// emptied by a merge: an internal root with no keys is replaced by its
// sole remaining child, and an empty leaf root means the tree is empty.
func (t *Tree) adjustRoot(root storage.Offset) error {
	buf, err := t.pager.readPage(root)
	if err != nil {
		return err
	}
	if nodeNumKeys(buf) > 0 {
		return nil
	}

	h, err := t.pager.readHeader()
	if err != nil {
		return err
	}

	if nodeIsLeaf(buf) {
		if err := t.pager.releasePage(root); err != nil {
			return err
		}
		h.Root = storage.NoOffset
		log.Printf("bptree: root leaf emptied, tree is now empty")
		return t.pager.writeHeader(h)
	}

	newRoot := internalChildAt(buf, 0)
	newRootBuf, err := t.pager.readPage(newRoot)
	if err != nil {
		return err
	}
	setNodeParent(newRootBuf, storage.NoOffset)
	if err := t.pager.writePage(newRoot, newRootBuf); err != nil {
		return err
	}
	if err := t.pager.releasePage(root); err != nil {
		return err
	}
	h.Root = newRoot
	log.Printf("bptree: shrinking tree height, new root at page %d", newRoot)
	return t.pager.writeHeader(h)
}
