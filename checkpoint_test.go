package wgan_go

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "generator")
	src, _ := tinyNetworks(t, 1)
	dst, _ := tinyNetworks(t, 2)
	if err := SaveCheckpoint(path, src.Params()); err != nil {
		t.Fatal(err)
	}
	if err := LoadCheckpoint(path, dst.Params()); err != nil {
		t.Fatal(err)
	}
	want, got := snapshot(src.Params()), snapshot(dst.Params())
	for name := range want {
		if !sameValues(want[name], got[name]) {
			t.Errorf("Parameter '%s' differs after round trip", name)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Only checkpoint itself should be left in directory, but got %d entries", len(entries))
	}
}

func TestCheckpointNotFound(t *testing.T) {
	gen, _ := tinyNetworks(t, 1)
	err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing"), gen.Params())
	if !errors.Is(err, ErrCheckpointNotFound) {
		t.Errorf("Expected ErrCheckpointNotFound, but got %v", err)
	}
}

func TestCheckpointShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generator")
	src, _ := tinyNetworks(t, 1)
	if err := SaveCheckpoint(path, src.Params()); err != nil {
		t.Fatal(err)
	}
	opts := tinyArchitecture()
	opts.Features = 3
	wider, err := Generator(opts)
	if err != nil {
		t.Fatal(err)
	}
	before := snapshot(wider.Params())
	err = LoadCheckpoint(path, wider.Params())
	if !errors.Is(err, ErrCheckpointShapeMismatch) {
		t.Fatalf("Expected ErrCheckpointShapeMismatch, but got %v", err)
	}
	after := snapshot(wider.Params())
	for name := range before {
		if !sameValues(before[name], after[name]) {
			t.Errorf("Failed load must not change parameter '%s'", name)
		}
	}
}
