package bptree

import "bptreeidx/pkg/storage"

// findLeaf descends from root to the leaf that would contain key. It
// returns storage.NoOffset if the tree is empty.
//
// At each internal node it finds the smallest index i in [0, num_keys]
// such that key < keys[i] (keys[num_keys] is treated as +inf) and
// descends to child i. Equality routes right: key == keys[i] fails the
// strict comparison and the search continues past it, landing on
// child i+1.
func (t *Tree) findLeaf(root storage.Offset, key int64) (storage.Offset, error) {
	if root == storage.NoOffset {
		return storage.NoOffset, nil
	}
	cur := root
	for {
		buf, err := t.pager.readPage(cur)
		if err != nil {
			return 0, err
		}
		if nodeIsLeaf(buf) {
			return cur, nil
		}
		n := nodeNumKeys(buf)
		i := 0
		for i < n && !(key < internalKeyAt(buf, i)) {
			i++
		}
		cur = internalChildAt(buf, i)
	}
}

// findInLeaf returns the index of key within a leaf's entries, or -1.
func findInLeaf(entries []leafEntry, key int64) int {
	for i, e := range entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

// Find looks up key and returns its value. It returns ErrNotFound if
// the key is absent.
func (t *Tree) Find(key int64) (Value, error) {
	h, err := t.pager.readHeader()
	if err != nil {
		return Value{}, err
	}
	leaf, err := t.findLeaf(h.Root, key)
	if err != nil {
		return Value{}, err
	}
	if leaf == storage.NoOffset {
		return Value{}, ErrNotFound
	}
	buf, err := t.pager.readPage(leaf)
	if err != nil {
		return Value{}, err
	}
	entries := readLeafEntries(buf)
	i := findInLeaf(entries, key)
	if i < 0 {
		return Value{}, ErrNotFound
	}
	return entries[i].Value, nil
}
