package remote

import (
	"context"
	"testing"

	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer("127.0.0.1:0", catalogue.New(), map[int]int64{0: 64})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestReadWriteRoundTripOverTCP(t *testing.T) {
	srv := startTestServer(t)
	ctx := context.Background()

	b := New(srv.Addr(), catalogue.New())
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close(ctx)

	want := []byte{1, 2, 3, 4, 5}
	if err := b.WriteArea(ctx, 0, 8, want); err != nil {
		t.Fatalf("WriteArea() failed: %v", err)
	}
	got := make([]byte, len(want))
	if err := b.ReadArea(ctx, 0, 8, got); err != nil {
		t.Fatalf("ReadArea() failed: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestOutOfBoundsOverTCPMarksNeedsRecovery(t *testing.T) {
	srv := startTestServer(t)
	ctx := context.Background()

	b := New(srv.Addr(), catalogue.New())
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close(ctx)

	buf := make([]byte, 8)
	if err := b.ReadArea(ctx, 0, 1000, buf); !deverr.IsRuntime(err) {
		t.Errorf("out-of-bounds remote read: got %v, want RuntimeError", err)
	}
	if !b.NeedsRecovery() {
		t.Errorf("expected backend to mark itself for recovery after a rejected transfer")
	}
}

func TestDoubleOpenFails(t *testing.T) {
	srv := startTestServer(t)
	ctx := context.Background()

	b := New(srv.Addr(), catalogue.New())
	if err := b.Open(ctx); err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer b.Close(ctx)

	if err := b.Open(ctx); !deverr.IsLogic(err) {
		t.Errorf("double Open(): got %v, want LogicError", err)
	}
}
