package device

import (
	"context"
	"testing"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/deverr"
)

func TestGetAccessorCachesIdenticalRequests(t *testing.T) {
	d := newOpenDevice(t)

	a, err := GetAccessor[int32](d, "/board/temperature", 1, 0, 0)
	if err != nil {
		t.Fatalf("GetAccessor() failed: %v", err)
	}
	b, err := GetAccessor[int32](d, "/board/temperature", 1, 0, 0)
	if err != nil {
		t.Fatalf("GetAccessor() failed: %v", err)
	}
	if a != b {
		t.Errorf("two identical GetAccessor() calls returned different leaves")
	}

	c, err := GetAccessor[int32](d, "/board/temperature", 1, 0, accessmode.WaitForNewData)
	if err != nil {
		t.Fatalf("GetAccessor() with different flags failed: %v", err)
	}
	if a == c {
		t.Errorf("GetAccessor() with different flags returned the same leaf")
	}
}

func TestGetAccessorOnVoidRegisterIsLogicError(t *testing.T) {
	d := newOpenDevice(t)
	if _, err := GetAccessor[int32](d, "/board/reset", 1, 0, 0); !deverr.IsLogic(err) {
		t.Errorf("GetAccessor() on a void register: got %v, want LogicError", err)
	}
}

func TestGetVoidAccessorOnChannelRegisterIsLogicError(t *testing.T) {
	d := newOpenDevice(t)
	if _, err := GetVoidAccessor(d, "/board/temperature", 0); !deverr.IsLogic(err) {
		t.Errorf("GetVoidAccessor() on a register with channels: got %v, want LogicError", err)
	}
}

func TestScalarAccessorReadWriteRoundTrip(t *testing.T) {
	d := newOpenDevice(t)
	ctx := context.Background()

	acc, err := GetScalarAccessor[int32](d, "/board/temperature", 0)
	if err != nil {
		t.Fatalf("GetScalarAccessor() failed: %v", err)
	}
	if err := acc.Write(ctx, 42); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	got, err := acc.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Read() = %d, want 42", got)
	}
}

func TestVoidAccessorHandleWritesWithoutPayload(t *testing.T) {
	d := newOpenDevice(t)
	handle, err := GetVoidAccessorHandle(d, "/board/reset", 0)
	if err != nil {
		t.Fatalf("GetVoidAccessorHandle() failed: %v", err)
	}
	if err := handle.Write(context.Background()); err != nil {
		t.Errorf("Write() failed: %v", err)
	}
}
