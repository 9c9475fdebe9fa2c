package accessor

import (
	"context"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

// VoidLeaf is a hardware-accessing element for a register that carries no
// payload: an interrupt line or a trigger/strobe register. Its transfer
// still goes to the backend (to latch the hardware event or fire the
// strobe) but there is no buffer to decode into or encode from.
type VoidLeaf struct {
	be   backend.Backend
	info catalogue.RegisterInfo
	flags accessmode.Flags

	version  VersionNumber
	validity accessmode.Validity
	activeErr error

	pendingRead  bool
	pendingWrite bool
	inGroup      bool

	excBackend backend.ExceptionBackend
}

// NewVoidLeaf constructs a VoidLeaf over info. info must describe a void
// register (no channels); a synchronous (non wait_for_new_data) void leaf
// must be writeable, since a void read with nothing to wait on and nothing
// to decode has no observable effect.
func NewVoidLeaf(be backend.Backend, info catalogue.RegisterInfo, flags accessmode.Flags) (*VoidLeaf, error) {
	if len(info.Channels) != 0 {
		return nil, deverr.NewLogic("accessor %q: a register with channels cannot back a VoidLeaf", info.Path.String())
	}
	if !flags.Has(accessmode.WaitForNewData) && !info.IsWriteable() {
		return nil, deverr.NewLogic(
			"accessor %q: a void accessor without wait_for_new_data must be writeable", info.Path.String())
	}

	var excBackend backend.ExceptionBackend
	if eb, ok := be.(backend.ExceptionBackend); ok {
		excBackend = eb
	}

	return &VoidLeaf{be: be, info: info, flags: flags, excBackend: excBackend}, nil
}

// Kind implements TransferElement.
func (l *VoidLeaf) Kind() Kind { return KindBackendLeaf }

// Name implements TransferElement.
func (l *VoidLeaf) Name() string { return l.info.Path.String() }

// IsReadable implements TransferElement.
func (l *VoidLeaf) IsReadable() bool { return l.info.IsReadable() }

// IsWriteable implements TransferElement.
func (l *VoidLeaf) IsWriteable() bool { return l.info.IsWriteable() }

// IsReadOnly implements TransferElement.
func (l *VoidLeaf) IsReadOnly() bool { return l.info.IsReadable() && !l.info.IsWriteable() }

// AccessModeFlags implements TransferElement.
func (l *VoidLeaf) AccessModeFlags() accessmode.Flags { return l.flags }

// VersionNumber implements TransferElement.
func (l *VoidLeaf) VersionNumber() VersionNumber { return l.version }

// DataValidity implements TransferElement.
func (l *VoidLeaf) DataValidity() accessmode.Validity { return l.validity }

// ActiveException implements TransferElement.
func (l *VoidLeaf) ActiveException() error { return l.activeErr }

// PreRead implements TransferElement. A synchronous void read (no
// wait_for_new_data) is a logic error: there is nothing to wait on and no
// buffer to update, mirroring the original implementation's rejection of a
// plain read() on a non-blocking void accessor.
func (l *VoidLeaf) PreRead(_ accessmode.TransferType) error {
	if !l.flags.Has(accessmode.WaitForNewData) {
		return deverr.NewLogic("accessor %q: a void accessor without wait_for_new_data cannot be read", l.Name())
	}
	if !l.IsReadable() {
		return deverr.NewLogic("accessor %q: register is not readable", l.Name())
	}
	if l.pendingRead {
		return deverr.NewLogic("accessor %q: preRead called twice without an intervening postRead", l.Name())
	}
	l.pendingRead = true
	l.activeErr = nil
	return nil
}

// ReadTransfer implements TransferElement.
func (l *VoidLeaf) ReadTransfer(ctx context.Context) {
	if err := l.be.ReadArea(ctx, l.info.AddressSpaceID, l.info.ByteOffset, nil); err != nil {
		l.activeErr = deverr.WrapRuntime("accessor "+l.Name()+": void read transfer", err)
		if l.excBackend != nil {
			l.excBackend.MarkForRecovery()
		}
	}
}

// PostRead implements TransferElement.
func (l *VoidLeaf) PostRead(_ accessmode.TransferType, _ bool) error {
	l.pendingRead = false
	if l.activeErr == nil {
		l.version = NextVersionNumber()
		l.validity = accessmode.Ok
	} else {
		l.validity = accessmode.Faulty
	}
	return l.activeErr
}

// PreWrite implements TransferElement.
func (l *VoidLeaf) PreWrite(_ accessmode.TransferType, _ VersionNumber) error {
	if !l.IsWriteable() {
		return deverr.NewLogic("accessor %q: register is not writeable", l.Name())
	}
	if l.pendingWrite {
		return deverr.NewLogic("accessor %q: preWrite called twice without an intervening postWrite", l.Name())
	}
	l.pendingWrite = true
	l.activeErr = nil
	return nil
}

// WriteTransfer implements TransferElement.
func (l *VoidLeaf) WriteTransfer(ctx context.Context, _ VersionNumber) {
	if err := l.be.WriteArea(ctx, l.info.AddressSpaceID, l.info.ByteOffset, nil); err != nil {
		l.activeErr = deverr.WrapRuntime("accessor "+l.Name()+": void write transfer", err)
		if l.excBackend != nil {
			l.excBackend.MarkForRecovery()
		}
	}
}

// PostWrite implements TransferElement.
func (l *VoidLeaf) PostWrite(_ accessmode.TransferType, _ VersionNumber) error {
	l.pendingWrite = false
	return l.activeErr
}

// InternalElements implements TransferElement: a leaf has none.
func (l *VoidLeaf) InternalElements() []TransferElement { return nil }

// HardwareAccessingElements implements TransferElement.
func (l *VoidLeaf) HardwareAccessingElements() []TransferElement {
	return []TransferElement{l}
}

// ReplaceTransferElement implements TransferElement.
func (l *VoidLeaf) ReplaceTransferElement(_ TransferElement) bool { return false }

// BackendIdentity implements TransferElement.
func (l *VoidLeaf) BackendIdentity() (BackendIdentity, bool) {
	return BackendIdentity{Backend: l.be, AddressSpaceID: l.info.AddressSpaceID, ByteOffset: l.info.ByteOffset}, true
}

// InGroup implements TransferElement.
func (l *VoidLeaf) InGroup() bool { return l.inGroup }

// MarkGroupOwned implements TransferElement.
func (l *VoidLeaf) MarkGroupOwned() { l.inGroup = true }

// ExceptionBackend implements TransferElement.
func (l *VoidLeaf) ExceptionBackend() (backend.ExceptionBackend, bool) {
	return l.excBackend, l.excBackend != nil
}
