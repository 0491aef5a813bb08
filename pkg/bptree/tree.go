// Package bptree implements a disk-resident B+ tree that maps 8-byte
// integer keys to fixed 120-byte value payloads in a single file of
// 4 KiB pages. Every operation re-reads the file header before acting
// and writes it back after mutating, so no page is cached in memory
// between calls; there is no write-ahead log and no internal locking,
// so a *Tree must not be shared across goroutines without external
// synchronization.
package bptree

import "bptreeidx/pkg/bptreeconfig"

// Tree is a single open index file.
type Tree struct {
	pager *pager
	opts  bptreeconfig.Options
}

// OpenDB opens path, creating and formatting it if it does not exist,
// using the default options.
func OpenDB(path string) (*Tree, error) {
	return OpenDBWithOptions(path, bptreeconfig.DefaultOptions())
}

// OpenDBWithOptions opens path with caller-supplied options.
func OpenDBWithOptions(path string, opts bptreeconfig.Options) (*Tree, error) {
	p, err := openPager(path, opts)
	if err != nil {
		return nil, err
	}
	return &Tree{pager: p, opts: opts}, nil
}

// Close closes the underlying file.
func (t *Tree) Close() error {
	return t.pager.close()
}

// verifyIfConfigured runs a full structural check after a mutation when
// Options.VerifyAfterMutate is set. It is meant for tests and debugging.
func (t *Tree) verifyIfConfigured() error {
	if !t.opts.VerifyAfterMutate {
		return nil
	}
	report, err := t.Verify()
	if err != nil {
		return err
	}
	if !report.OK {
		return ErrCorruption
	}
	return nil
}
