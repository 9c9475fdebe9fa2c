package pcie

import (
	"context"
	"os"
	"testing"

	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

func newBackedFile(t *testing.T, size int64) string {
	t.Helper()
	f, err := os.CreateTemp("", "pcie_resource_*")
	if err != nil {
		t.Fatalf("cannot create temp file: %v", err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatalf("cannot truncate temp file: %v", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		t.Fatalf("cannot close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })
	return path
}

func TestReadWriteRoundTrip(t *testing.T) {
	path := newBackedFile(t, 0x3000)
	b, err := New(path, catalogue.New(), map[int]int64{0: 0x1000, 1: 0x2000})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx := context.Background()
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close(ctx)

	want := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	if err := b.WriteArea(ctx, 1, 0x10, want); err != nil {
		t.Fatalf("WriteArea() failed: %v", err)
	}
	got := make([]byte, len(want))
	if err := b.ReadArea(ctx, 1, 0x10, got); err != nil {
		t.Fatalf("ReadArea() failed: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: got %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestOutOfBoundsFails(t *testing.T) {
	path := newBackedFile(t, 0x1000)
	b, err := New(path, catalogue.New(), map[int]int64{0: 0x1000})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close(ctx)

	buf := make([]byte, 4)
	if err := b.ReadArea(ctx, 0, 0x1000, buf); !deverr.IsLogic(err) {
		t.Errorf("out-of-bounds read: got %v, want LogicError", err)
	}
}

func TestUnalignedLengthFailsWithRuntimeError(t *testing.T) {
	path := newBackedFile(t, 0x1000)
	b, err := New(path, catalogue.New(), map[int]int64{0: 0x1000})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close(ctx)

	buf := make([]byte, 3)
	if err := b.ReadArea(ctx, 0, 0, buf); !deverr.IsRuntime(err) {
		t.Errorf("read with length 3: got %v, want RuntimeError", err)
	}
	if err := b.WriteArea(ctx, 0, 0, buf); !deverr.IsRuntime(err) {
		t.Errorf("write with length 3: got %v, want RuntimeError", err)
	}
}

func TestRecoverRemapsFile(t *testing.T) {
	path := newBackedFile(t, 0x100)
	b, err := New(path, catalogue.New(), map[int]int64{0: 0x100})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close(ctx)

	b.MarkForRecovery()
	buf := make([]byte, 4)
	if err := b.ReadArea(ctx, 0, 0, buf); !deverr.IsRuntime(err) {
		t.Errorf("read while needing recovery: got %v, want RuntimeError", err)
	}

	if err := b.Recover(ctx); err != nil {
		t.Fatalf("Recover() failed: %v", err)
	}
	if b.NeedsRecovery() {
		t.Errorf("expected NeedsRecovery() false after Recover()")
	}
	if err := b.ReadArea(ctx, 0, 0, buf); err != nil {
		t.Errorf("read after recovery should succeed, got %v", err)
	}
}
