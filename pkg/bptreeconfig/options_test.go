package bptreeconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	if o.FreeListBatch != DefaultFreeListBatch {
		t.Fatalf("got batch %d, want %d", o.FreeListBatch, DefaultFreeListBatch)
	}
	if o.VerifyAfterMutate {
		t.Fatalf("expected VerifyAfterMutate off by default")
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.yaml")
	if err := os.WriteFile(path, []byte("verify_after_mutate: true\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	o, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !o.VerifyAfterMutate {
		t.Fatalf("expected VerifyAfterMutate true")
	}
	if o.FreeListBatch != DefaultFreeListBatch {
		t.Fatalf("expected default batch to survive partial override, got %d", o.FreeListBatch)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoad_RejectsNonPositiveBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opts.yaml")
	if err := os.WriteFile(path, []byte("free_list_batch: 0\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	o, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if o.FreeListBatch != DefaultFreeListBatch {
		t.Fatalf("expected fallback to default batch, got %d", o.FreeListBatch)
	}
}
