// Package serial implements a backend.Backend over a legacy serial port,
// speaking the same wireproto framing the remote TCP backend uses but
// carried over a goserial.Port instead of a net.Conn — a stand-in for
// hardware too old or too exotic to have a kernel PCIe driver, the class
// of device the teacher's own pkg/device.Phone talks to.
package serial

import (
	"context"
	"fmt"
	"sync"

	"github.com/FObersteiner/goserial"

	"github.com/chimeradev/regaccess/backend/wireproto"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

// Backend is a wireproto client carried over a serial port.
type Backend struct {
	portPath string
	baud     int
	cat      *catalogue.Catalogue

	mu            sync.Mutex
	port          *goserial.Port
	needsRecovery bool
}

// New returns a Backend that will open portPath at baud bits/s at Open
// time.
func New(portPath string, baud int, cat *catalogue.Catalogue) *Backend {
	return &Backend{portPath: portPath, baud: baud, cat: cat}
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return fmt.Sprintf("serial register backend at %q (%d baud)", b.portPath, b.baud)
}

// Open implements backend.Backend.
func (b *Backend) Open(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port != nil {
		return deverr.NewLogic("serial backend %q is already open", b.portPath)
	}
	port, err := goserial.OpenPort(&goserial.Config{Name: b.portPath, Baud: b.baud})
	if err != nil {
		return deverr.WrapRuntime(fmt.Sprintf("serial backend %q: cannot open port", b.portPath), err)
	}
	b.port = port
	b.needsRecovery = false
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return deverr.NewLogic("serial backend %q is not open", b.portPath)
	}
	err := b.port.Close()
	b.port = nil
	if err != nil {
		return deverr.WrapRuntime(fmt.Sprintf("serial backend %q: close failed", b.portPath), err)
	}
	return nil
}

// IsOpen implements backend.Backend.
func (b *Backend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port != nil
}

// Catalogue implements backend.Backend.
func (b *Backend) Catalogue() *catalogue.Catalogue {
	return b.cat
}

// ReadArea implements backend.Backend.
func (b *Backend) ReadArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return deverr.NewLogic("serial backend %q: read on a closed backend", b.portPath)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("serial backend %q: needs recovery before further transfers", b.portPath)
	}

	req := wireproto.Request{Op: wireproto.OpRead, AddressSpaceID: int32(addressSpaceID), ByteOffset: byteOffset, Length: uint32(len(buf))}
	resp, err := b.roundTrip(req)
	if err != nil {
		return err
	}
	if !resp.OK {
		b.needsRecovery = true
		return deverr.NewRuntime("serial backend %q: read rejected: %s", b.portPath, resp.ErrMsg)
	}
	if len(resp.Payload) != len(buf) {
		b.needsRecovery = true
		return deverr.NewRuntime("serial backend %q: read returned %d bytes, want %d", b.portPath, len(resp.Payload), len(buf))
	}
	copy(buf, resp.Payload)
	return nil
}

// WriteArea implements backend.Backend.
func (b *Backend) WriteArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		return deverr.NewLogic("serial backend %q: write on a closed backend", b.portPath)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("serial backend %q: needs recovery before further transfers", b.portPath)
	}

	req := wireproto.Request{Op: wireproto.OpWrite, AddressSpaceID: int32(addressSpaceID), ByteOffset: byteOffset, Length: uint32(len(buf)), Payload: buf}
	resp, err := b.roundTrip(req)
	if err != nil {
		return err
	}
	if !resp.OK {
		b.needsRecovery = true
		return deverr.NewRuntime("serial backend %q: write rejected: %s", b.portPath, resp.ErrMsg)
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

// Recover implements backend.ExceptionBackend: closes and reopens the
// port, the serial analogue of the teacher's Phone reconnecting after a
// dropped link.
func (b *Backend) Recover(ctx context.Context) error {
	b.mu.Lock()
	if b.port != nil {
		b.port.Close()
		b.port = nil
	}
	b.mu.Unlock()

	return b.Open(ctx)
}

func (b *Backend) roundTrip(req wireproto.Request) (wireproto.Response, error) {
	if err := wireproto.WriteRequest(b.port, req); err != nil {
		b.needsRecovery = true
		return wireproto.Response{}, deverr.WrapRuntime(fmt.Sprintf("serial backend %q", b.portPath), err)
	}
	resp, err := wireproto.ReadResponse(b.port)
	if err != nil {
		b.needsRecovery = true
		return wireproto.Response{}, deverr.WrapRuntime(fmt.Sprintf("serial backend %q", b.portPath), err)
	}
	return resp, nil
}
