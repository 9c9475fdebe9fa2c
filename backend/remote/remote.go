// Package remote implements a backend.Backend that forwards every register
// transfer over TCP to a remote register server speaking the wireproto
// protocol, the generalized descendant of the teacher's own
// cmd/unixserver request/response loop (there: a fixed byte handshake over
// a UNIX socket; here: framed read/write requests over TCP).
package remote

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/chimeradev/regaccess/backend/wireproto"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

// Backend is a TCP client for the remote register protocol.
type Backend struct {
	addr string
	cat  *catalogue.Catalogue

	mu            sync.Mutex
	conn          net.Conn
	needsRecovery bool
}

// New returns a Backend that will dial addr (host:port) at Open time.
func New(addr string, cat *catalogue.Catalogue) *Backend {
	return &Backend{addr: addr, cat: cat}
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return fmt.Sprintf("remote register backend at %q", b.addr)
}

// Open implements backend.Backend.
func (b *Backend) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return deverr.NewLogic("remote backend %q is already open", b.addr)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", b.addr)
	if err != nil {
		return deverr.WrapRuntime(fmt.Sprintf("remote backend %q: dial failed", b.addr), err)
	}
	b.conn = conn
	b.needsRecovery = false
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return deverr.NewLogic("remote backend %q is not open", b.addr)
	}
	err := b.conn.Close()
	b.conn = nil
	if err != nil {
		return deverr.WrapRuntime(fmt.Sprintf("remote backend %q: close failed", b.addr), err)
	}
	return nil
}

// IsOpen implements backend.Backend.
func (b *Backend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Catalogue implements backend.Backend.
func (b *Backend) Catalogue() *catalogue.Catalogue {
	return b.cat
}

// ReadArea implements backend.Backend.
func (b *Backend) ReadArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return deverr.NewLogic("remote backend %q: read on a closed backend", b.addr)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("remote backend %q: needs recovery before further transfers", b.addr)
	}

	req := wireproto.Request{Op: wireproto.OpRead, AddressSpaceID: int32(addressSpaceID), ByteOffset: byteOffset, Length: uint32(len(buf))}
	resp, err := b.roundTrip(req)
	if err != nil {
		return err
	}
	if !resp.OK {
		b.needsRecovery = true
		return deverr.NewRuntime("remote backend %q: read rejected: %s", b.addr, resp.ErrMsg)
	}
	if len(resp.Payload) != len(buf) {
		b.needsRecovery = true
		return deverr.NewRuntime("remote backend %q: read returned %d bytes, want %d", b.addr, len(resp.Payload), len(buf))
	}
	copy(buf, resp.Payload)
	return nil
}

// WriteArea implements backend.Backend.
func (b *Backend) WriteArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return deverr.NewLogic("remote backend %q: write on a closed backend", b.addr)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("remote backend %q: needs recovery before further transfers", b.addr)
	}

	req := wireproto.Request{Op: wireproto.OpWrite, AddressSpaceID: int32(addressSpaceID), ByteOffset: byteOffset, Length: uint32(len(buf)), Payload: buf}
	resp, err := b.roundTrip(req)
	if err != nil {
		return err
	}
	if !resp.OK {
		b.needsRecovery = true
		return deverr.NewRuntime("remote backend %q: write rejected: %s", b.addr, resp.ErrMsg)
	}
	return nil
}

// MarkForRecovery implements backend.ExceptionBackend.
func (b *Backend) MarkForRecovery() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.needsRecovery = true
}

// NeedsRecovery implements backend.ExceptionBackend.
func (b *Backend) NeedsRecovery() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.needsRecovery
}

// Recover implements backend.ExceptionBackend: drops and re-dials the
// connection.
func (b *Backend) Recover(ctx context.Context) error {
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.mu.Unlock()

	if err := b.Open(ctx); err != nil {
		return err
	}
	return nil
}

// roundTrip sends req and waits for the matching response. Caller must
// hold b.mu.
func (b *Backend) roundTrip(req wireproto.Request) (wireproto.Response, error) {
	if err := wireproto.WriteRequest(b.conn, req); err != nil {
		b.needsRecovery = true
		return wireproto.Response{}, deverr.WrapRuntime(fmt.Sprintf("remote backend %q", b.addr), err)
	}
	resp, err := wireproto.ReadResponse(b.conn)
	if err != nil {
		b.needsRecovery = true
		return wireproto.Response{}, deverr.WrapRuntime(fmt.Sprintf("remote backend %q", b.addr), err)
	}
	return resp, nil
}
