package accessor

import (
	"context"
	"testing"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
	"github.com/chimeradev/regaccess/regpath"
)

func voidRegInfo(kind accessmode.AccessKind) catalogue.RegisterInfo {
	return catalogue.RegisterInfo{
		Path:           regpath.New("/irq/strobe"),
		ElementCount:   1,
		AddressSpaceID: 0,
		ByteOffset:     0x40,
		AccessKind:     kind,
	}
}

func TestVoidLeafConstructorRejectsSynchronousReadOnly(t *testing.T) {
	info := voidRegInfo(accessmode.ReadOnly)
	cat := catalogue.New()
	be := openedDummy(t, cat, map[int]int64{0: 4096})

	_, err := NewVoidLeaf(be, info, 0)
	if !deverr.IsLogic(err) {
		t.Errorf("expected a LogicError constructing a synchronous read-only void leaf, got %v", err)
	}
}

func TestVoidLeafConstructorAllowsWaitForNewData(t *testing.T) {
	info := voidRegInfo(accessmode.ReadOnly)
	cat := catalogue.New()
	be := openedDummy(t, cat, map[int]int64{0: 4096})

	_, err := NewVoidLeaf(be, info, accessmode.WaitForNewData)
	if err != nil {
		t.Errorf("expected a wait_for_new_data void leaf over a read-only register to succeed, got %v", err)
	}
}

func TestVoidLeafSynchronousReadIsLogicError(t *testing.T) {
	info := voidRegInfo(accessmode.WriteOnly)
	cat := catalogue.New()
	be := openedDummy(t, cat, map[int]int64{0: 4096})

	leaf, err := NewVoidLeaf(be, info, 0)
	if err != nil {
		t.Fatalf("NewVoidLeaf() failed: %v", err)
	}
	err = leaf.PreRead(accessmode.Read)
	if !deverr.IsLogic(err) {
		t.Errorf("expected PreRead() on a synchronous void leaf to be a LogicError, got %v", err)
	}
}

func TestVoidLeafWriteCycleSucceeds(t *testing.T) {
	info := voidRegInfo(accessmode.WriteOnly)
	cat := catalogue.New()
	be := openedDummy(t, cat, map[int]int64{0: 4096})

	leaf, err := NewVoidLeaf(be, info, 0)
	if err != nil {
		t.Fatalf("NewVoidLeaf() failed: %v", err)
	}

	if err := leaf.PreWrite(accessmode.Write, 0); err != nil {
		t.Fatalf("PreWrite() failed: %v", err)
	}
	leaf.WriteTransfer(context.Background(), 0)
	if err := leaf.PostWrite(accessmode.Write, 0); err != nil {
		t.Fatalf("PostWrite() failed: %v", err)
	}
}

func TestVoidLeafWaitForNewDataReadCycleSucceeds(t *testing.T) {
	info := voidRegInfo(accessmode.Interrupt)
	cat := catalogue.New()
	be := openedDummy(t, cat, map[int]int64{0: 4096})

	leaf, err := NewVoidLeaf(be, info, accessmode.WaitForNewData)
	if err != nil {
		t.Fatalf("NewVoidLeaf() failed: %v", err)
	}

	if err := leaf.PreRead(accessmode.Read); err != nil {
		t.Fatalf("PreRead() failed: %v", err)
	}
	leaf.ReadTransfer(context.Background())
	if err := leaf.PostRead(accessmode.Read, true); err != nil {
		t.Fatalf("PostRead() failed: %v", err)
	}
	if leaf.DataValidity() != accessmode.Ok {
		t.Errorf("expected validity ok, got %v", leaf.DataValidity())
	}
	if leaf.VersionNumber() == 0 {
		t.Errorf("expected a non-zero version number after a successful read")
	}
}
