package bptree

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"bptreeidx/pkg/bptreeconfig"
	"bptreeidx/pkg/storage"
)

func openTree(t *testing.T) *Tree {
	t.Helper()
	dir := t.TempDir()
	tr, err := OpenDB(filepath.Join(dir, "idx.bin"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return tr
}

func valueOf(i int64) Value {
	var v Value
	v[0] = byte(i)
	v[1] = byte(i >> 8)
	v[2] = byte(i >> 16)
	v[119] = 0xAB
	return v
}

func TestTree_EmptyLifecycle(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	if _, err := tr.Find(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("find on empty tree: got %v, want ErrNotFound", err)
	}
	if err := tr.Delete(1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete on empty tree: got %v, want ErrNotFound", err)
	}
}

func TestTree_InsertFindRoundTrip(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	if err := tr.Insert(7, valueOf(7)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := tr.Find(7)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != valueOf(7) {
		t.Fatalf("value mismatch: got %v", got)
	}
}

func TestTree_DuplicateKeyRejected(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	if err := tr.Insert(1, valueOf(1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tr.Insert(1, valueOf(2)); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("got %v, want ErrDuplicateKey", err)
	}
}

func TestTree_LeafSplit(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	// LeafOrder is 32: the root leaf holds 31 entries before the 32nd
	// insert forces a split and promotes the root to an internal node.
	const n = int64(LeafOrder)
	for i := int64(0); i < n; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	h, err := tr.pager.readHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	rootBuf, err := tr.pager.sp.ReadPage(h.Root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if nodeIsLeaf(rootBuf) {
		t.Fatalf("root is still a leaf after %d inserts", n)
	}
	if nodeNumKeys(rootBuf) != 1 {
		t.Fatalf("expected a single separator key after first split, got %d", nodeNumKeys(rootBuf))
	}

	for i := int64(0); i < n; i++ {
		v, err := tr.Find(i)
		if err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
		if v != valueOf(i) {
			t.Fatalf("value mismatch for %d", i)
		}
	}

	assertVerifyOK(t, tr)
}

func TestTree_InternalSplit(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	// Enough sequential keys that the root internal node - holding up
	// to InternalOrder-1 separators - overflows and splits in turn,
	// growing the tree to three levels.
	const n = int64(6000)
	for i := int64(0); i < n; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	h, err := tr.pager.readHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	rootBuf, err := tr.pager.sp.ReadPage(h.Root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if nodeIsLeaf(rootBuf) {
		t.Fatalf("root should be internal")
	}
	_, rootEntries := readInternalEntries(rootBuf)
	depth := 1
	childBuf, err := tr.pager.sp.ReadPage(rootEntries[0].Child)
	if err != nil {
		t.Fatalf("read child: %v", err)
	}
	for !nodeIsLeaf(childBuf) {
		depth++
		_, childEntries := readInternalEntries(childBuf)
		childBuf, err = tr.pager.sp.ReadPage(childEntries[0].Child)
		if err != nil {
			t.Fatalf("read child: %v", err)
		}
	}
	if depth < 2 {
		t.Fatalf("expected the internal root to have split at least once, depth = %d", depth)
	}

	for i := int64(0); i < n; i += 97 {
		if _, err := tr.Find(i); err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
	}
	assertVerifyOK(t, tr)
}

func TestTree_SequentialFillAndLeafChainScan(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	const n = int64(5000)
	for i := int64(0); i < n; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	h, err := tr.pager.readHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	cur := h.Root
	for {
		buf, err := tr.pager.sp.ReadPage(cur)
		if err != nil {
			t.Fatalf("read %d: %v", cur, err)
		}
		if nodeIsLeaf(buf) {
			break
		}
		cur = internalChildAt(buf, 0)
	}

	var seen int64
	for cur != storage.NoOffset {
		buf, err := tr.pager.sp.ReadPage(cur)
		if err != nil {
			t.Fatalf("read %d: %v", cur, err)
		}
		for _, e := range readLeafEntries(buf) {
			if e.Key != seen {
				t.Fatalf("leaf chain out of order: got %d, want %d", e.Key, seen)
			}
			seen++
		}
		cur = leafNextSibling(buf)
	}
	if seen != n {
		t.Fatalf("leaf chain visited %d keys, want %d", seen, n)
	}

	assertVerifyOK(t, tr)
}

func TestTree_DeleteCoalesce(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	const n = int64(200)
	for i := int64(0); i < n; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	// Delete almost everything, which forces merges all the way up.
	for i := int64(0); i < n-2; i++ {
		if err := tr.Delete(i); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
		assertVerifyOK(t, tr)
	}

	for i := n - 2; i < n; i++ {
		v, err := tr.Find(i)
		if err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
		if v != valueOf(i) {
			t.Fatalf("value mismatch for %d", i)
		}
	}
	for i := int64(0); i < n-2; i++ {
		if _, err := tr.Find(i); !errors.Is(err, ErrNotFound) {
			t.Fatalf("find %d: got %v, want ErrNotFound", i, err)
		}
	}
}

func TestTree_DeleteRedistribute(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	// Enough keys to build several full leaves, then delete every other
	// key. The first underflows merge two half-full leaves; once a merged
	// leaf holds more than the minimum, later underflows next to it are
	// repaired by borrowing from it instead.
	const n = int64(400)
	for i := int64(0); i < n; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	for i := int64(0); i < n; i += 2 {
		if err := tr.Delete(i); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	assertVerifyOK(t, tr)

	for i := int64(1); i < n; i += 2 {
		if _, err := tr.Find(i); err != nil {
			t.Fatalf("find %d: %v", i, err)
		}
	}
	for i := int64(0); i < n; i += 2 {
		if _, err := tr.Find(i); !errors.Is(err, ErrNotFound) {
			t.Fatalf("find %d: got %v, want ErrNotFound", i, err)
		}
	}
}

func TestTree_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idx.bin")

	tr, err := OpenDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := int64(0); i < 500; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	tr2, err := OpenDB(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer tr2.Close()
	for i := int64(0); i < 500; i++ {
		v, err := tr2.Find(i)
		if err != nil {
			t.Fatalf("find %d after reopen: %v", i, err)
		}
		if v != valueOf(i) {
			t.Fatalf("value mismatch for %d after reopen", i)
		}
	}
	assertVerifyOK(t, tr2)
}

func TestTree_RandomChurnAgainstReferenceMap(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	rng := rand.New(rand.NewSource(1))
	reference := make(map[int64]Value)

	const ops = 10000
	const keySpace = 800
	for i := 0; i < ops; i++ {
		key := int64(rng.Intn(keySpace))
		if _, present := reference[key]; !present && rng.Intn(2) == 0 {
			v := valueOf(key)
			if err := tr.Insert(key, v); err != nil {
				t.Fatalf("insert %d: %v", key, err)
			}
			reference[key] = v
		} else if present {
			if err := tr.Delete(key); err != nil {
				t.Fatalf("delete %d: %v", key, err)
			}
			delete(reference, key)
		}
	}

	for key, want := range reference {
		got, err := tr.Find(key)
		if err != nil {
			t.Fatalf("find %d: %v", key, err)
		}
		if got != want {
			t.Fatalf("value mismatch for %d", key)
		}
	}
	for key := int64(0); key < keySpace; key++ {
		if _, present := reference[key]; present {
			continue
		}
		if _, err := tr.Find(key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("find %d: got %v, want ErrNotFound", key, err)
		}
	}

	assertVerifyOK(t, tr)
}

func TestTree_VerifyAfterMutateOption(t *testing.T) {
	dir := t.TempDir()
	tr, err := OpenDBWithOptions(filepath.Join(dir, "idx.bin"), bptreeconfig.Options{
		FreeListBatch:     bptreeconfig.DefaultFreeListBatch,
		VerifyAfterMutate: true,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tr.Close()

	for i := int64(0); i < 100; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	for i := int64(0); i < 50; i++ {
		if err := tr.Delete(i); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
}

func assertVerifyOK(t *testing.T, tr *Tree) {
	t.Helper()
	report, err := tr.Verify()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.OK {
		t.Fatalf("verify found problems: %v", report.Problems)
	}
}
