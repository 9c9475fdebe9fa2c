package accessor

import (
	"context"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/converter"
	"github.com/chimeradev/regaccess/deverr"
)

// NumericCastDecorator wraps an inner Typed[U] accessor and exposes its
// buffer as T, converting element-by-element on the way in and out.
// Out-of-range conversions raise a NumericCastError from PostRead/PreWrite
// rather than aborting the whole transfer: the hardware transfer itself
// already succeeded or failed independently of the value conversion.
type NumericCastDecorator[T converter.Numeric, U converter.Numeric] struct {
	inner Typed[U]
	view  [][]T

	castErr error

	pendingRead  bool
	pendingWrite bool
}

// NewNumericCastDecorator wraps inner, allocating a T-typed view with the
// same channel/element shape.
func NewNumericCastDecorator[T converter.Numeric, U converter.Numeric](inner Typed[U]) *NumericCastDecorator[T, U] {
	view := make([][]T, inner.Channels())
	for i := range view {
		view[i] = make([]T, inner.Elements())
	}
	return &NumericCastDecorator[T, U]{inner: inner, view: view}
}

// Kind implements TransferElement.
func (d *NumericCastDecorator[T, U]) Kind() Kind { return KindNumericCast }

// Name implements TransferElement.
func (d *NumericCastDecorator[T, U]) Name() string { return d.inner.Name() }

// IsReadable implements TransferElement.
func (d *NumericCastDecorator[T, U]) IsReadable() bool { return d.inner.IsReadable() }

// IsWriteable implements TransferElement.
func (d *NumericCastDecorator[T, U]) IsWriteable() bool { return d.inner.IsWriteable() }

// IsReadOnly implements TransferElement.
func (d *NumericCastDecorator[T, U]) IsReadOnly() bool { return d.inner.IsReadOnly() }

// AccessModeFlags implements TransferElement.
func (d *NumericCastDecorator[T, U]) AccessModeFlags() accessmode.Flags { return d.inner.AccessModeFlags() }

// VersionNumber implements TransferElement.
func (d *NumericCastDecorator[T, U]) VersionNumber() VersionNumber { return d.inner.VersionNumber() }

// DataValidity implements TransferElement.
func (d *NumericCastDecorator[T, U]) DataValidity() accessmode.Validity { return d.inner.DataValidity() }

// ActiveException implements TransferElement. A numeric-cast error takes
// precedence over the inner element's own active exception once it has
// been raised by PostRead, since the value conversion happened after the
// inner transfer already completed.
func (d *NumericCastDecorator[T, U]) ActiveException() error {
	if d.castErr != nil {
		return d.castErr
	}
	return d.inner.ActiveException()
}

// Channels implements Typed.
func (d *NumericCastDecorator[T, U]) Channels() int { return d.inner.Channels() }

// Elements implements Typed.
func (d *NumericCastDecorator[T, U]) Elements() int { return d.inner.Elements() }

// Get implements Typed.
func (d *NumericCastDecorator[T, U]) Get(channel, element int) T { return d.view[channel][element] }

// Set implements Typed.
func (d *NumericCastDecorator[T, U]) Set(channel, element int, v T) { d.view[channel][element] = v }

// PreRead implements TransferElement. The idempotence guard lives on the
// decorator's own flag, not the inner element's, so that two decorators
// coalesced onto the same inner leaf can each preRead once per cycle
// without tripping each other's guard.
func (d *NumericCastDecorator[T, U]) PreRead(_ accessmode.TransferType) error {
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
func (d *NumericCastDecorator[T, U]) ReadTransfer(ctx context.Context) { d.inner.ReadTransfer(ctx) }

// PostRead implements TransferElement.
func (d *NumericCastDecorator[T, U]) PostRead(t accessmode.TransferType, updateBuffer bool) error {
	d.pendingRead = false
	if err := d.inner.PostRead(t, updateBuffer); err != nil {
		return err
	}
	d.castErr = nil
	if !updateBuffer {
		return nil
	}
	for ch := 0; ch < d.inner.Channels(); ch++ {
		for e := 0; e < d.inner.Elements(); e++ {
			cast, err := converter.Cast[T](d.inner.Get(ch, e))
			if err != nil {
				if d.castErr == nil {
					d.castErr = deverr.WrapNumericCast(d.Name(), err)
				}
				continue
			}
			d.view[ch][e] = cast
		}
	}
	return d.castErr
}

// PreWrite implements TransferElement. The T-typed view is converted down
// to U and staged into the inner accessor's buffer; encoding to raw
// happens later, in the inner leaf's WriteTransfer, so that sharing the
// leaf with another decorator never double-fires its preWrite guard.
func (d *NumericCastDecorator[T, U]) PreWrite(_ accessmode.TransferType, _ VersionNumber) error {
	if !d.inner.IsWriteable() {
		return deverr.NewLogic("accessor %q: register is not writeable", d.Name())
	}
	if d.pendingWrite {
		return deverr.NewLogic("accessor %q: preWrite called twice without an intervening postWrite", d.Name())
	}
	d.pendingWrite = true
	d.castErr = nil
	for ch := 0; ch < d.inner.Channels(); ch++ {
		for e := 0; e < d.inner.Elements(); e++ {
			cast, err := converter.Cast[U](d.view[ch][e])
			if err != nil {
				if d.castErr == nil {
					d.castErr = deverr.WrapNumericCast(d.Name(), err)
				}
				continue
			}
			d.inner.Set(ch, e, cast)
		}
	}
	return d.castErr
}

// WriteTransfer implements TransferElement.
func (d *NumericCastDecorator[T, U]) WriteTransfer(ctx context.Context, version VersionNumber) {
	d.inner.WriteTransfer(ctx, version)
}

// PostWrite implements TransferElement.
func (d *NumericCastDecorator[T, U]) PostWrite(t accessmode.TransferType, version VersionNumber) error {
	d.pendingWrite = false
	return d.inner.PostWrite(t, version)
}

// InternalElements implements TransferElement.
func (d *NumericCastDecorator[T, U]) InternalElements() []TransferElement {
	return []TransferElement{d.inner}
}

// HardwareAccessingElements implements TransferElement.
func (d *NumericCastDecorator[T, U]) HardwareAccessingElements() []TransferElement {
	return d.inner.HardwareAccessingElements()
}

// ReplaceTransferElement implements TransferElement. If candidate provides
// the same backend transfer as the inner element, the decorator adopts
// candidate as its new inner element.
func (d *NumericCastDecorator[T, U]) ReplaceTransferElement(candidate TransferElement) bool {
	if candidate == TransferElement(d) {
		return false
	}
	if typed, ok := candidate.(Typed[U]); ok {
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
func (d *NumericCastDecorator[T, U]) BackendIdentity() (BackendIdentity, bool) {
	return d.inner.BackendIdentity()
}

// InGroup implements TransferElement.
func (d *NumericCastDecorator[T, U]) InGroup() bool { return d.inner.InGroup() }

// MarkGroupOwned implements TransferElement.
func (d *NumericCastDecorator[T, U]) MarkGroupOwned() { d.inner.MarkGroupOwned() }

// ExceptionBackend implements TransferElement.
func (d *NumericCastDecorator[T, U]) ExceptionBackend() (backend.ExceptionBackend, bool) {
	return d.inner.ExceptionBackend()
}
