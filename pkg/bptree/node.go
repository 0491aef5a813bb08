package bptree

import (
	"encoding/binary"

	"bptreeidx/pkg/storage"
)

// Node page layout:
//
//	[0:8)     parent offset, or -1 for the root
//	[8:12)    is_leaf (0 internal, 1 leaf), stored as a 32-bit int
//	[12:16)   num_keys, 32-bit
//	[16:120)  reserved, unused
//	[120:128) special: leaf -> right sibling offset (0 or -1 if rightmost)
//	                   internal -> leftmost child offset
//	[128:4096) packed entries
//
// Leaf entries are 128 bytes: 8-byte key, 120-byte value. Internal
// entries are 16 bytes: 8-byte key, 8-byte child offset, and sit to the
// right of the special/leftmost-child slot.
const (
	nodeParentOff  = 0
	nodeIsLeafOff  = 8
	nodeNumKeysOff = 12
	nodeSpecialOff = 120
	nodeEntriesOff = 128

	// LeafOrder bounds how many entries a leaf holds: at most
	// LeafOrder-1 live entries.
	LeafOrder     = 32
	leafEntrySize = 128
	leafMaxKeys   = LeafOrder - 1

	// InternalOrder bounds how many keys an internal node holds:
	// holds at most InternalOrder-1 keys and InternalOrder children.
	InternalOrder     = 249
	internalEntrySize = 16
	internalMaxKeys   = InternalOrder - 1
)

// ValueSize is the fixed width of a stored value payload.
const ValueSize = 120

// Value is the fixed-size payload stored alongside each key.
type Value [ValueSize]byte

func newNodePage(parent storage.Offset, isLeaf bool) []byte {
	buf := make([]byte, storage.PageSize)
	setNodeParent(buf, parent)
	setNodeIsLeaf(buf, isLeaf)
	setNodeNumKeys(buf, 0)
	setNodeSpecial(buf, storage.NoOffset)
	return buf
}

func nodeParent(buf []byte) storage.Offset {
	return storage.Offset(int64(binary.LittleEndian.Uint64(buf[nodeParentOff : nodeParentOff+8])))
}

func setNodeParent(buf []byte, off storage.Offset) {
	binary.LittleEndian.PutUint64(buf[nodeParentOff:nodeParentOff+8], uint64(int64(off)))
}

func nodeIsLeaf(buf []byte) bool {
	return binary.LittleEndian.Uint32(buf[nodeIsLeafOff:nodeIsLeafOff+4]) == 1
}

func setNodeIsLeaf(buf []byte, leaf bool) {
	v := uint32(0)
	if leaf {
		v = 1
	}
	binary.LittleEndian.PutUint32(buf[nodeIsLeafOff:nodeIsLeafOff+4], v)
}

func nodeNumKeys(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf[nodeNumKeysOff : nodeNumKeysOff+4]))
}

func setNodeNumKeys(buf []byte, n int) {
	binary.LittleEndian.PutUint32(buf[nodeNumKeysOff:nodeNumKeysOff+4], uint32(n))
}

// nodeSpecialRaw returns the special slot without normalizing the
// leaf-sibling sentinel. Internal callers that want "no next sibling"
// treated uniformly should use leafNextSibling instead.
func nodeSpecialRaw(buf []byte) storage.Offset {
	return storage.Offset(int64(binary.LittleEndian.Uint64(buf[nodeSpecialOff : nodeSpecialOff+8])))
}

func setNodeSpecial(buf []byte, off storage.Offset) {
	binary.LittleEndian.PutUint64(buf[nodeSpecialOff:nodeSpecialOff+8], uint64(int64(off)))
}

// leafNextSibling returns the right-sibling offset, treating both 0 and
// -1 as "no next leaf": on-disk writers have been inconsistent about
// which sentinel they use, so readers accept both.
func leafNextSibling(buf []byte) storage.Offset {
	raw := nodeSpecialRaw(buf)
	if raw == 0 || raw == storage.NoOffset {
		return storage.NoOffset
	}
	return raw
}

func setLeafNextSibling(buf []byte, off storage.Offset) {
	setNodeSpecial(buf, off)
}

// leafEntry is a decoded (key, value) pair from a leaf page.
type leafEntry struct {
	Key   int64
	Value Value
}

func leafKeyAt(buf []byte, i int) int64 {
	off := nodeEntriesOff + i*leafEntrySize
	return int64(binary.LittleEndian.Uint64(buf[off : off+8]))
}

func leafValueAt(buf []byte, i int) Value {
	var v Value
	off := nodeEntriesOff + i*leafEntrySize + 8
	copy(v[:], buf[off:off+ValueSize])
	return v
}

func setLeafEntryAt(buf []byte, i int, key int64, val Value) {
	off := nodeEntriesOff + i*leafEntrySize
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(key))
	copy(buf[off+8:off+8+ValueSize], val[:])
}

// readLeafEntries decodes all live entries of a leaf page in order.
func readLeafEntries(buf []byte) []leafEntry {
	n := nodeNumKeys(buf)
	out := make([]leafEntry, n)
	for i := 0; i < n; i++ {
		out[i] = leafEntry{Key: leafKeyAt(buf, i), Value: leafValueAt(buf, i)}
	}
	return out
}

// writeLeafEntries overwrites a leaf page's entries and num_keys. It
// does not touch parent, is_leaf, or the sibling pointer.
func writeLeafEntries(buf []byte, entries []leafEntry) {
	for i, e := range entries {
		setLeafEntryAt(buf, i, e.Key, e.Value)
	}
	setNodeNumKeys(buf, len(entries))
}

// internalEntry is a decoded (key, right-child) pair from an internal
// page; the left child of entry 0 is the node's leftmost-child slot.
type internalEntry struct {
	Key   int64
	Child storage.Offset
}

func internalKeyAt(buf []byte, i int) int64 {
	off := nodeEntriesOff + i*internalEntrySize
	return int64(binary.LittleEndian.Uint64(buf[off : off+8]))
}

func setInternalKeyAt(buf []byte, i int, key int64) {
	off := nodeEntriesOff + i*internalEntrySize
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(key))
}

// internalChildAt returns child i, where i == 0 is the leftmost child
// (stored in the special slot) and i in [1, num_keys] is the right
// child of key i-1.
func internalChildAt(buf []byte, i int) storage.Offset {
	if i == 0 {
		return nodeSpecialRaw(buf)
	}
	off := nodeEntriesOff + (i-1)*internalEntrySize + 8
	return storage.Offset(int64(binary.LittleEndian.Uint64(buf[off : off+8])))
}

func setInternalChildAt(buf []byte, i int, child storage.Offset) {
	if i == 0 {
		setNodeSpecial(buf, child)
		return
	}
	off := nodeEntriesOff + (i-1)*internalEntrySize + 8
	binary.LittleEndian.PutUint64(buf[off:off+8], uint64(int64(child)))
}

// readInternalEntries decodes an internal page into its leftmost child
// and the list of (key, right-child) pairs.
func readInternalEntries(buf []byte) (leftmost storage.Offset, entries []internalEntry) {
	n := nodeNumKeys(buf)
	leftmost = internalChildAt(buf, 0)
	entries = make([]internalEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = internalEntry{Key: internalKeyAt(buf, i), Child: internalChildAt(buf, i+1)}
	}
	return leftmost, entries
}

// writeInternalEntries overwrites an internal page's leftmost child,
// entries, and num_keys. It does not touch parent or is_leaf.
func writeInternalEntries(buf []byte, leftmost storage.Offset, entries []internalEntry) {
	setInternalChildAt(buf, 0, leftmost)
	for i, e := range entries {
		setInternalKeyAt(buf, i, e.Key)
		setInternalChildAt(buf, i+1, e.Child)
	}
	setNodeNumKeys(buf, len(entries))
}

// allChildren returns every child offset of an internal node, leftmost
// first, in left-to-right order.
func allChildren(leftmost storage.Offset, entries []internalEntry) []storage.Offset {
	out := make([]storage.Offset, 0, len(entries)+1)
	out = append(out, leftmost)
	for _, e := range entries {
		out = append(out, e.Child)
	}
	return out
}
