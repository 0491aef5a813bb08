package bptree

import "testing"

func TestVerify_DetectsOutOfOrderLeaf(t *testing.T) {
	tr := openTree(t)
	defer tr.Close()

	for i := int64(0); i < 10; i++ {
		if err := tr.Insert(i, valueOf(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	h, err := tr.pager.readHeader()
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	buf, err := tr.pager.sp.ReadPage(h.Root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	entries := readLeafEntries(buf)
	entries[0], entries[len(entries)-1] = entries[len(entries)-1], entries[0]
	writeLeafEntries(buf, entries)
	if err := tr.pager.sp.WritePage(h.Root, buf); err != nil {
		t.Fatalf("write corrupted root: %v", err)
	}

	report, err := tr.Verify()
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.OK {
		t.Fatalf("expected corruption to be detected")
	}
}
