// Package bptreeconfig holds the small set of tunables the index accepts
// beyond what the on-disk format already fixes (page size, entry
// capacities, and the free-list batch size are otherwise hardcoded).
package bptreeconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFreeListBatch is the number of pages appended to the free list
// each time it runs low.
const DefaultFreeListBatch = 10

// Options controls behavior that is not part of the on-disk format and
// therefore safe to vary between opens of the same file.
type Options struct {
	// FreeListBatch is how many pages the index's page allocator appends to the
	// free list when it is down to its last page. Tests shrink this to
	// make free-list growth cheap to trigger; production code should
	// leave it at DefaultFreeListBatch.
	FreeListBatch int `yaml:"free_list_batch"`

	// VerifyAfterMutate runs a full structural verification after every
	// Insert/Delete when true. It is expensive (O(n) per call) and meant
	// for tests and debugging, never for production use.
	VerifyAfterMutate bool `yaml:"verify_after_mutate"`
}

// DefaultOptions returns the default configuration with no file I/O.
func DefaultOptions() Options {
	return Options{
		FreeListBatch:     DefaultFreeListBatch,
		VerifyAfterMutate: false,
	}
}

// Load reads YAML-encoded Options from path, filling in defaults for any
// field the file does not mention.
func Load(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "bptreeconfig: read %s", path)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, errors.Wrapf(err, "bptreeconfig: parse %s", path)
	}
	if opts.FreeListBatch <= 0 {
		opts.FreeListBatch = DefaultFreeListBatch
	}
	return opts, nil
}
