package bptree

import (
	"fmt"
	"math"

	"bptreeidx/pkg/storage"
)

// Report is the result of a full structural check (the
// quantified invariants), meant for tests and offline diagnosis - not
// something the hot insert/delete path pays for unless
// Options.VerifyAfterMutate asks it to.
type Report struct {
	OK       bool
	Problems []string
}

// Verify walks the whole file and confirms:
//  1. every node's keys are strictly increasing, and every leaf key is
//     within the bounds implied by its ancestors' separators;
//  2. every child's parent field points back at its actual parent;
//  3. every leaf is at the same depth;
//  4. the leaf sibling chain visits every leaf exactly once, in key
//     order, and ends at the sentinel;
//  5. the free list and the reachable tree pages partition every page
//     in the file with nothing left over and nothing shared.
func (t *Tree) Verify() (Report, error) {
	h, err := t.pager.readHeader()
	if err != nil {
		return Report{}, err
	}

	v := &verifier{t: t, visited: map[storage.Offset]bool{0: true}}

	if h.Root != storage.NoOffset {
		v.walk(h.Root, storage.NoOffset, math.MinInt64, math.MaxInt64, 0)
		v.checkLeafChain(h.Root)
	}
	v.walkFreeList(h.FreeHead)
	v.checkFullCoverage(h.PageCount)

	return Report{OK: len(v.problems) == 0, Problems: v.problems}, nil
}

type verifier struct {
	t         *Tree
	visited   map[storage.Offset]bool
	leafDepth int
	leafCount int
	sawLeaf   bool
	problems  []string
}

func (v *verifier) fail(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

// walk validates node and its subtree, given the half-open interval
// [lo, hi) every key under node must fall within, and depth is node's
// distance from the root.
func (v *verifier) walk(node storage.Offset, expectParent storage.Offset, lo, hi int64, depth int) {
	if v.visited[node] {
		v.fail("page %d reachable from more than one place", node)
		return
	}
	v.visited[node] = true

	buf, err := v.t.pager.readPage(node)
	if err != nil {
		v.fail("page %d: read failed: %v", node, err)
		return
	}
	if nodeParent(buf) != expectParent {
		v.fail("page %d: parent field is %d, want %d", node, nodeParent(buf), expectParent)
	}

	if nodeIsLeaf(buf) {
		if v.sawLeaf && depth != v.leafDepth {
			v.fail("leaf %d at depth %d, want %d", node, depth, v.leafDepth)
		}
		v.sawLeaf = true
		v.leafDepth = depth
		v.leafCount++

		entries := readLeafEntries(buf)
		if len(entries) == 0 {
			v.fail("leaf %d has no entries", node)
		}
		for i, e := range entries {
			if e.Key < lo || e.Key >= hi {
				v.fail("leaf %d: key %d out of bounds [%d, %d)", node, e.Key, lo, hi)
			}
			if i > 0 && entries[i-1].Key >= e.Key {
				v.fail("leaf %d: keys out of order at index %d", node, i)
			}
		}
		return
	}

	leftmost, entries := readInternalEntries(buf)
	if len(entries) == 0 {
		v.fail("internal node %d has no keys", node)
		return
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key >= entries[i].Key {
			v.fail("internal node %d: keys out of order at index %d", node, i)
		}
	}

	v.walk(leftmost, node, lo, entries[0].Key, depth+1)
	for i, e := range entries {
		childHi := hi
		if i+1 < len(entries) {
			childHi = entries[i+1].Key
		}
		v.walk(e.Child, node, e.Key, childHi, depth+1)
	}
}

func (v *verifier) walkFreeList(head storage.Offset) {
	cur := head
	for cur != storage.NoOffset {
		if v.visited[cur] {
			v.fail("free page %d also reachable elsewhere", cur)
			return
		}
		v.visited[cur] = true
		buf, err := v.t.pager.readPage(cur)
		if err != nil {
			v.fail("free page %d: read failed: %v", cur, err)
			return
		}
		cur = freePageNext(buf)
	}
}

func (v *verifier) checkFullCoverage(pageCount uint64) {
	for i := uint64(0); i < pageCount; i++ {
		off := storage.Offset(i * storage.PageSize)
		if !v.visited[off] {
			v.fail("page at %d is neither the header, reachable from the tree, nor on the free list", off)
		}
	}
}

// checkLeafChain follows the root's leftmost descent to the first
// leaf, then walks sibling pointers and confirms they visit every leaf
// discovered during walk, strictly increasing, ending at the sentinel.
func (v *verifier) checkLeafChain(root storage.Offset) {
	cur := root
	for {
		buf, err := v.t.pager.readPage(cur)
		if err != nil {
			v.fail("leaf-chain descent: read %d failed: %v", cur, err)
			return
		}
		if nodeIsLeaf(buf) {
			break
		}
		cur = internalChildAt(buf, 0)
	}

	var lastKey int64
	first := true
	count := 0
	for cur != storage.NoOffset {
		buf, err := v.t.pager.readPage(cur)
		if err != nil {
			v.fail("leaf chain: read %d failed: %v", cur, err)
			return
		}
		entries := readLeafEntries(buf)
		if len(entries) > 0 {
			if !first && entries[0].Key <= lastKey {
				v.fail("leaf chain: out of order at page %d", cur)
			}
			lastKey = entries[len(entries)-1].Key
			first = false
		}
		count++
		if count > v.leafCount {
			v.fail("leaf chain visits more than the %d leaves in the tree", v.leafCount)
			return
		}
		cur = leafNextSibling(buf)
	}
	if count == 0 {
		v.fail("leaf chain is empty but root exists")
	}
	if count != v.leafCount {
		v.fail("leaf chain visits %d leaves, tree has %d", count, v.leafCount)
	}
}
