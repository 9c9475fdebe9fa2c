package accessor

import (
	"context"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/converter"
	"github.com/chimeradev/regaccess/deverr"
)

// CopyRegisterDecorator wraps an inner Typed[T] accessor and exposes an
// independent, group-owned copy of its buffer. The group calls the decorator's
// own PreRead/PostRead around the transfer of its inner element, but a
// caller holding the decorator sees a private snapshot that the inner
// element's own readers cannot mutate out from under it, and vice versa.
type CopyRegisterDecorator[T converter.Numeric] struct {
	inner   Typed[T]
	copyBuf [][]T

	pendingRead  bool
	pendingWrite bool
}

// NewCopyRegisterDecorator wraps inner with a private buffer copy.
func NewCopyRegisterDecorator[T converter.Numeric](inner Typed[T]) *CopyRegisterDecorator[T] {
	buf := make([][]T, inner.Channels())
	for i := range buf {
		buf[i] = make([]T, inner.Elements())
	}
	return &CopyRegisterDecorator[T]{inner: inner, copyBuf: buf}
}

// Kind implements TransferElement.
func (d *CopyRegisterDecorator[T]) Kind() Kind { return KindCopyDecorator }

// Name implements TransferElement.
func (d *CopyRegisterDecorator[T]) Name() string { return d.inner.Name() }

// IsReadable implements TransferElement.
func (d *CopyRegisterDecorator[T]) IsReadable() bool { return d.inner.IsReadable() }

// IsWriteable implements TransferElement.
func (d *CopyRegisterDecorator[T]) IsWriteable() bool { return d.inner.IsWriteable() }

// IsReadOnly implements TransferElement.
func (d *CopyRegisterDecorator[T]) IsReadOnly() bool { return d.inner.IsReadOnly() }

// AccessModeFlags implements TransferElement.
func (d *CopyRegisterDecorator[T]) AccessModeFlags() accessmode.Flags { return d.inner.AccessModeFlags() }

// VersionNumber implements TransferElement.
func (d *CopyRegisterDecorator[T]) VersionNumber() VersionNumber { return d.inner.VersionNumber() }

// DataValidity implements TransferElement.
func (d *CopyRegisterDecorator[T]) DataValidity() accessmode.Validity { return d.inner.DataValidity() }

// ActiveException implements TransferElement.
func (d *CopyRegisterDecorator[T]) ActiveException() error { return d.inner.ActiveException() }

// Channels implements Typed.
func (d *CopyRegisterDecorator[T]) Channels() int { return d.inner.Channels() }

// Elements implements Typed.
func (d *CopyRegisterDecorator[T]) Elements() int { return d.inner.Elements() }

// Get implements Typed.
func (d *CopyRegisterDecorator[T]) Get(channel, element int) T { return d.copyBuf[channel][element] }

// Set implements Typed.
func (d *CopyRegisterDecorator[T]) Set(channel, element int, v T) { d.copyBuf[channel][element] = v }

// PreRead implements TransferElement. The idempotence guard is kept on the
// decorator's own flag rather than delegated to the inner element, since
// two decorators can share one coalesced inner leaf and must each be able
// to preRead once per cycle without tripping the other's guard.
func (d *CopyRegisterDecorator[T]) PreRead(_ accessmode.TransferType) error {
	if !d.inner.IsReadable() {
		return deverr.NewLogic("accessor %q: register is not readable", d.Name())
	}
	if d.pendingRead {
		return deverr.NewLogic("accessor %q: preRead called twice without an intervening postRead", d.Name())
	}
	d.pendingRead = true
	return nil
}

// ReadTransfer implements TransferElement.
func (d *CopyRegisterDecorator[T]) ReadTransfer(ctx context.Context) { d.inner.ReadTransfer(ctx) }

// PostRead implements TransferElement. The inner element's buffer is copied
// into the decorator's own buffer only after the inner element has
// finished decoding it.
func (d *CopyRegisterDecorator[T]) PostRead(t accessmode.TransferType, updateBuffer bool) error {
	d.pendingRead = false
	if err := d.inner.PostRead(t, updateBuffer); err != nil {
		return err
	}
	if !updateBuffer {
		return nil
	}
	for ch := 0; ch < d.inner.Channels(); ch++ {
		for e := 0; e < d.inner.Elements(); e++ {
			d.copyBuf[ch][e] = d.inner.Get(ch, e)
		}
	}
	return nil
}

// PreWrite implements TransferElement. The decorator's own buffer is
// staged into the inner element's buffer; encoding to raw happens later,
// in the inner leaf's WriteTransfer, so that sharing the leaf with another
// decorator never double-fires the leaf's own preWrite guard.
func (d *CopyRegisterDecorator[T]) PreWrite(_ accessmode.TransferType, _ VersionNumber) error {
	if !d.inner.IsWriteable() {
		return deverr.NewLogic("accessor %q: register is not writeable", d.Name())
	}
	if d.pendingWrite {
		return deverr.NewLogic("accessor %q: preWrite called twice without an intervening postWrite", d.Name())
	}
	d.pendingWrite = true
	for ch := 0; ch < d.inner.Channels(); ch++ {
		for e := 0; e < d.inner.Elements(); e++ {
			d.inner.Set(ch, e, d.copyBuf[ch][e])
		}
	}
	return nil
}

// WriteTransfer implements TransferElement.
func (d *CopyRegisterDecorator[T]) WriteTransfer(ctx context.Context, version VersionNumber) {
	d.inner.WriteTransfer(ctx, version)
}

// PostWrite implements TransferElement.
func (d *CopyRegisterDecorator[T]) PostWrite(t accessmode.TransferType, version VersionNumber) error {
	d.pendingWrite = false
	return d.inner.PostWrite(t, version)
}

// InternalElements implements TransferElement.
func (d *CopyRegisterDecorator[T]) InternalElements() []TransferElement {
	return []TransferElement{d.inner}
}

// HardwareAccessingElements implements TransferElement.
func (d *CopyRegisterDecorator[T]) HardwareAccessingElements() []TransferElement {
	return d.inner.HardwareAccessingElements()
}

// ReplaceTransferElement implements TransferElement. If candidate provides
// the same backend transfer as the inner element, the decorator adopts
// candidate as its new inner element — this is the coalescing step that
// lets a decorator composed after another accessor already claimed a leaf
// fall in behind the shared instance instead of transferring twice.
func (d *CopyRegisterDecorator[T]) ReplaceTransferElement(candidate TransferElement) bool {
	if candidate == TransferElement(d) {
		return false
	}
	if typed, ok := candidate.(Typed[T]); ok {
		innerID, innerHasID := d.inner.BackendIdentity()
		candID, candHasID := candidate.BackendIdentity()
		if innerHasID && candHasID && innerID.Equal(candID) {
			d.inner = typed
			return true
		}
	}
	return d.inner.ReplaceTransferElement(candidate)
}

// BackendIdentity implements TransferElement.
func (d *CopyRegisterDecorator[T]) BackendIdentity() (BackendIdentity, bool) {
	return d.inner.BackendIdentity()
}

// InGroup implements TransferElement.
func (d *CopyRegisterDecorator[T]) InGroup() bool { return d.inner.InGroup() }

// MarkGroupOwned implements TransferElement.
func (d *CopyRegisterDecorator[T]) MarkGroupOwned() { d.inner.MarkGroupOwned() }

// ExceptionBackend implements TransferElement.
func (d *CopyRegisterDecorator[T]) ExceptionBackend() (backend.ExceptionBackend, bool) {
	return d.inner.ExceptionBackend()
}
