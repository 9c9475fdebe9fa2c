package group

import (
	"context"
	"testing"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/accessor"
	"github.com/chimeradev/regaccess/backend/dummy"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
	"github.com/chimeradev/regaccess/descriptor"
	"github.com/chimeradev/regaccess/regpath"
)

func regInfo(path string, byteOffset int64, elementCount int, kind accessmode.AccessKind) catalogue.RegisterInfo {
	return catalogue.RegisterInfo{
		Path:             regpath.New(path),
		ElementCount:     elementCount,
		ElementPitchBits: 32,
		AddressSpaceID:   0,
		ByteOffset:       byteOffset,
		AccessKind:       kind,
		Channels: []descriptor.ChannelInfo{
			{TransportKind: descriptor.Integral, SignificantBits: 32, SignedFlag: true},
		},
	}
}

func openDummyBackend(t *testing.T, spaceSizes map[int]int64) *dummy.Backend {
	t.Helper()
	cat := catalogue.New()
	be := dummy.New("group-test", cat, spaceSizes)
	if err := be.Open(context.Background()); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return be
}

// countingBackend wraps a dummy.Backend and records every ReadArea/WriteArea
// call it observes, so a test can assert on how many physical transfers a
// group cycle actually issued and what byte range each one covered.
type countingBackend struct {
	*dummy.Backend
	reads  []byteRangeCall
	writes []byteRangeCall
}

type byteRangeCall struct {
	addressSpaceID int
	byteOffset     int64
	length         int
}

func newCountingBackend(t *testing.T, spaceSizes map[int]int64) *countingBackend {
	return &countingBackend{Backend: openDummyBackend(t, spaceSizes)}
}

func (c *countingBackend) ReadArea(ctx context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	c.reads = append(c.reads, byteRangeCall{addressSpaceID, byteOffset, len(buf)})
	return c.Backend.ReadArea(ctx, addressSpaceID, byteOffset, buf)
}

func (c *countingBackend) WriteArea(ctx context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	c.writes = append(c.writes, byteRangeCall{addressSpaceID, byteOffset, len(buf)})
	return c.Backend.WriteArea(ctx, addressSpaceID, byteOffset, buf)
}

func TestGroupReadCoalescesDecoratorsOverTheSameRegister(t *testing.T) {
	be := openDummyBackend(t, map[int]int64{0: 4096})
	info := regInfo("/board/shared", 0x10, 1, accessmode.ReadWrite)

	// Two independently constructed Leaf objects over the identical
	// hardware register, the way two unrelated getAccessor calls for the
	// same path would produce before any leaf-level caching. Each is
	// wrapped by its own CopyRegisterDecorator, modeling two accessor
	// handles that both resolved to the same register.
	leafA, err := accessor.NewLeaf[int32](be, info, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf(a) failed: %v", err)
	}
	leafB, err := accessor.NewLeaf[int32](be, info, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf(b) failed: %v", err)
	}
	decoA := accessor.NewCopyRegisterDecorator[int32](leafA)
	decoB := accessor.NewCopyRegisterDecorator[int32](leafB)

	g := New()
	if err := g.AddAccessor(decoA); err != nil {
		t.Fatalf("AddAccessor(decoA) failed: %v", err)
	}
	if err := g.AddAccessor(decoB); err != nil {
		t.Fatalf("AddAccessor(decoB) failed: %v", err)
	}

	if len(g.lowLevel) != 1 {
		t.Fatalf("expected AddAccessor's coalescing step to leave exactly 1 low-level leaf, got %d", len(g.lowLevel))
	}

	if err := g.Read(context.Background()); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if decoA.Get(0, 0) != decoB.Get(0, 0) {
		t.Errorf("decoA and decoB diverged after a coalesced read: %v vs %v", decoA.Get(0, 0), decoB.Get(0, 0))
	}

	// A second read cycle must succeed too: the shared leaf's preRead guard
	// must not still be tripped from the first cycle.
	if err := g.Read(context.Background()); err != nil {
		t.Fatalf("second Read() failed: %v", err)
	}
}

func TestGroupWriteCoalescesDecoratorsOverTheSameRegister(t *testing.T) {
	be := openDummyBackend(t, map[int]int64{0: 4096})
	info := regInfo("/board/shared-write", 0x30, 1, accessmode.ReadWrite)

	leafA, err := accessor.NewLeaf[int32](be, info, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf(a) failed: %v", err)
	}
	leafB, err := accessor.NewLeaf[int32](be, info, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf(b) failed: %v", err)
	}
	decoA := accessor.NewCopyRegisterDecorator[int32](leafA)
	decoB := accessor.NewCopyRegisterDecorator[int32](leafB)

	g := New()
	if err := g.AddAccessor(decoA); err != nil {
		t.Fatalf("AddAccessor(decoA) failed: %v", err)
	}
	if err := g.AddAccessor(decoB); err != nil {
		t.Fatalf("AddAccessor(decoB) failed: %v", err)
	}

	decoA.Set(0, 0, 7)
	decoB.Set(0, 0, 42)

	// preWrite must succeed for both decorators even though they share one
	// coalesced low-level leaf: each has its own idempotence guard, and
	// neither one's preWrite reaches the shared leaf directly.
	if err := g.Write(context.Background(), accessor.NextVersionNumber()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	if err := g.Read(context.Background()); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	// Whichever decorator's staged value reached the shared leaf last wins;
	// both decorators observe that same final value on the next read.
	if decoA.Get(0, 0) != decoB.Get(0, 0) {
		t.Errorf("decoA and decoB diverged after a coalesced write+read: %v vs %v", decoA.Get(0, 0), decoB.Get(0, 0))
	}
}

// TestGroupReadMergesOverlappingRegistersIntoOneBackendRead reproduces the
// mandatory overlapping-ranges scenario: two distinct registers, /MOD/A
// covering word offsets [0,4) and /MOD/B covering the overlapping [2,4),
// must still be serviced by exactly one contiguous backend read spanning
// their union, not two independent reads.
func TestGroupReadMergesOverlappingRegistersIntoOneBackendRead(t *testing.T) {
	be := newCountingBackend(t, map[int]int64{0: 4096})

	infoA := regInfo("/MOD/A", 0, 4, accessmode.ReadWrite) // words [0,4) -> bytes [0,16)
	infoB := regInfo("/MOD/B", 8, 2, accessmode.ReadWrite) // words [2,4) -> bytes [8,16)

	leafA, err := accessor.NewLeaf[int32](be, infoA, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewLeaf(a) failed: %v", err)
	}
	leafB, err := accessor.NewLeaf[int32](be, infoB, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewLeaf(b) failed: %v", err)
	}

	g := New()
	if err := g.AddAccessor(leafA); err != nil {
		t.Fatalf("AddAccessor(a) failed: %v", err)
	}
	if err := g.AddAccessor(leafB); err != nil {
		t.Fatalf("AddAccessor(b) failed: %v", err)
	}

	if err := g.Read(context.Background()); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	if len(be.reads) != 1 {
		t.Fatalf("expected exactly 1 backend read covering the merged range, got %d: %v", len(be.reads), be.reads)
	}
	want := byteRangeCall{addressSpaceID: 0, byteOffset: 0, length: 16}
	if be.reads[0] != want {
		t.Errorf("merged read = %+v, want %+v", be.reads[0], want)
	}

	be.writes = be.writes[:0]
	leafA.Set(0, 0, 1)
	leafA.Set(0, 1, 2)
	leafA.Set(0, 2, 3)
	leafA.Set(0, 3, 4)
	leafB.Set(0, 0, 99)
	leafB.Set(0, 1, 100)
	if err := g.Write(context.Background(), accessor.NextVersionNumber()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if len(be.writes) != 1 {
		t.Fatalf("expected exactly 1 backend write covering the merged range, got %d: %v", len(be.writes), be.writes)
	}
	if be.writes[0] != want {
		t.Errorf("merged write = %+v, want %+v", be.writes[0], want)
	}
}

func TestGroupFixedPointRoundTrip(t *testing.T) {
	be := openDummyBackend(t, map[int]int64{0: 4096})
	info := catalogue.RegisterInfo{
		Path:             regpath.New("/board/temperature"),
		ElementCount:     1,
		ElementPitchBits: 32,
		AddressSpaceID:   0,
		ByteOffset:       0x20,
		AccessKind:       accessmode.ReadWrite,
		Channels: []descriptor.ChannelInfo{
			{TransportKind: descriptor.Fractional, SignificantBits: 18, FractionalBits: 4, SignedFlag: true},
		},
	}
	leaf, err := accessor.NewLeaf[float64](be, info, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf() failed: %v", err)
	}

	g := New()
	if err := g.AddAccessor(leaf); err != nil {
		t.Fatalf("AddAccessor() failed: %v", err)
	}

	leaf.Set(0, 0, -3.125)
	if err := g.Write(context.Background(), accessor.NextVersionNumber()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := g.Read(context.Background()); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if got := leaf.Get(0, 0); got != -3.125 {
		t.Errorf("round-tripped value = %v, want -3.125", got)
	}

	leaf.Set(0, 0, 1e9)
	if err := g.Write(context.Background(), accessor.NextVersionNumber()); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if err := g.Read(context.Background()); err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	const wantMax = (131072.0 - 1) * 0.0625 // (2^17 - 1) * 2^-4
	if got := leaf.Get(0, 0); got != wantMax {
		t.Errorf("saturated round-trip = %v, want %v", got, wantMax)
	}
}

func TestGroupRuntimeErrorPropagationMarksFaulty(t *testing.T) {
	be := openDummyBackend(t, map[int]int64{0: 4096})
	infoA := regInfo("/board/a", 0x0, 1, accessmode.ReadWrite)
	infoB := regInfo("/board/b", 0x4, 1, accessmode.ReadWrite)
	infoC := regInfo("/board/c", 0x8, 1, accessmode.ReadWrite)

	leafA, err := accessor.NewLeaf[int32](be, infoA, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf(a) failed: %v", err)
	}
	leafB, err := accessor.NewLeaf[int32](be, infoB, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf(b) failed: %v", err)
	}
	leafC, err := accessor.NewLeaf[int32](be, infoC, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf(c) failed: %v", err)
	}

	g := New()
	for _, l := range []accessor.TransferElement{leafA, leafB, leafC} {
		if err := g.AddAccessor(l); err != nil {
			t.Fatalf("AddAccessor() failed: %v", err)
		}
	}

	// Simulate an I/O error on the middle leaf's transfer by marking the
	// backend for recovery right before the cycle (the dummy backend
	// fails every subsequent transfer until recovered).
	be.MarkForRecovery()

	err = g.Read(context.Background())
	if !deverr.IsRuntime(err) {
		t.Fatalf("expected Read() to surface a RuntimeError, got %v", err)
	}
	if leafA.DataValidity() != accessmode.Faulty {
		t.Errorf("expected leafA validity faulty after a group-wide I/O failure, got %v", leafA.DataValidity())
	}
}

func TestGroupWriteOnReadOnlyAccessorIsLogicError(t *testing.T) {
	be := openDummyBackend(t, map[int]int64{0: 4096})
	info := regInfo("/board/readonly", 0x0, 1, accessmode.ReadOnly)

	leaf, err := accessor.NewLeaf[int32](be, info, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf() failed: %v", err)
	}

	g := New()
	if err := g.AddAccessor(leaf); err != nil {
		t.Fatalf("AddAccessor() failed: %v", err)
	}
	if !g.IsReadOnly() {
		t.Fatalf("expected the group to be read-only once a read-only accessor is added")
	}

	err = g.Write(context.Background(), accessor.NextVersionNumber())
	if !deverr.IsLogic(err) {
		t.Errorf("expected Write() on a read-only group to be a LogicError, got %v", err)
	}
}

func TestGroupRejectsWaitForNewDataAccessor(t *testing.T) {
	be := openDummyBackend(t, map[int]int64{0: 4096})
	info := regInfo("/board/irq", 0x0, 1, accessmode.ReadWrite)

	leaf, err := accessor.NewLeaf[int32](be, info, 0, 1, accessmode.WaitForNewData)
	if err != nil {
		t.Fatalf("NewLeaf() failed: %v", err)
	}

	g := New()
	err = g.AddAccessor(leaf)
	if !deverr.IsLogic(err) {
		t.Errorf("expected AddAccessor() to reject a wait_for_new_data accessor with a LogicError, got %v", err)
	}
	if leaf.InGroup() {
		t.Errorf("expected the rejected accessor to remain ungrouped")
	}
}

func TestAddAccessorTwiceToDifferentGroupsIsLogicError(t *testing.T) {
	be := openDummyBackend(t, map[int]int64{0: 4096})
	info := regInfo("/board/dup", 0x0, 1, accessmode.ReadWrite)

	leaf, err := accessor.NewLeaf[int32](be, info, 0, 1, 0)
	if err != nil {
		t.Fatalf("NewLeaf() failed: %v", err)
	}

	g1 := New()
	if err := g1.AddAccessor(leaf); err != nil {
		t.Fatalf("AddAccessor(g1) failed: %v", err)
	}

	g2 := New()
	err = g2.AddAccessor(leaf)
	if !deverr.IsLogic(err) {
		t.Errorf("expected adding an already-grouped accessor to a second group to be a LogicError, got %v", err)
	}
}
