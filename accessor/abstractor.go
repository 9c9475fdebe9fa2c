package accessor

import (
	"context"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/converter"
)

// singleTransfer runs one full preX/transfer/postX cycle for elem outside
// any group, the way a standalone accessor (not added to a TransferGroup)
// performs its own read or write.
func singleTransfer(ctx context.Context, elem TransferElement, t accessmode.TransferType, version VersionNumber) error {
	switch t {
	case accessmode.Write:
		if err := elem.PreWrite(t, version); err != nil {
			return err
		}
		elem.WriteTransfer(ctx, version)
		return elem.PostWrite(t, version)
	default:
		if err := elem.PreRead(t); err != nil {
			return err
		}
		elem.ReadTransfer(ctx)
		return elem.PostRead(t, true)
	}
}

// ScalarAccessor is a thin user-facing handle over a single-element,
// single-channel Typed[T] accessor.
type ScalarAccessor[T converter.Numeric] struct {
	elem Typed[T]
}

// NewScalarAccessor wraps elem as a ScalarAccessor.
func NewScalarAccessor[T converter.Numeric](elem Typed[T]) *ScalarAccessor[T] {
	return &ScalarAccessor[T]{elem: elem}
}

// Read performs a blocking read and returns the cooked value.
func (a *ScalarAccessor[T]) Read(ctx context.Context) (T, error) {
	if err := singleTransfer(ctx, a.elem, accessmode.Read, 0); err != nil {
		return 0, err
	}
	return a.elem.Get(0, 0), nil
}

// ReadNonBlocking performs a non-blocking read and returns the cooked value.
func (a *ScalarAccessor[T]) ReadNonBlocking(ctx context.Context) (T, error) {
	if err := singleTransfer(ctx, a.elem, accessmode.ReadNonBlocking, 0); err != nil {
		return 0, err
	}
	return a.elem.Get(0, 0), nil
}

// ReadLatest performs a read-latest and returns the cooked value.
func (a *ScalarAccessor[T]) ReadLatest(ctx context.Context) (T, error) {
	if err := singleTransfer(ctx, a.elem, accessmode.ReadLatest, 0); err != nil {
		return 0, err
	}
	return a.elem.Get(0, 0), nil
}

// Write stages v and performs a blocking write.
func (a *ScalarAccessor[T]) Write(ctx context.Context, v T) error {
	a.elem.Set(0, 0, v)
	return singleTransfer(ctx, a.elem, accessmode.Write, a.elem.VersionNumber())
}

// WriteDestructively writes v without regard for the accessor's current
// version number, the way a fire-and-forget actuator write does.
func (a *ScalarAccessor[T]) WriteDestructively(ctx context.Context, v T) error {
	a.elem.Set(0, 0, v)
	return singleTransfer(ctx, a.elem, accessmode.Write, NextVersionNumber())
}

// Element exposes the underlying TransferElement, for adding to a group.
func (a *ScalarAccessor[T]) Element() TransferElement { return a.elem }

// OneDAccessor is a thin user-facing handle over a single-channel,
// multi-element Typed[T] accessor.
type OneDAccessor[T converter.Numeric] struct {
	elem Typed[T]
}

// NewOneDAccessor wraps elem as a OneDAccessor.
func NewOneDAccessor[T converter.Numeric](elem Typed[T]) *OneDAccessor[T] {
	return &OneDAccessor[T]{elem: elem}
}

// Len reports the number of elements.
func (a *OneDAccessor[T]) Len() int { return a.elem.Elements() }

// Read performs a blocking read and returns the cooked element slice.
func (a *OneDAccessor[T]) Read(ctx context.Context) ([]T, error) {
	if err := singleTransfer(ctx, a.elem, accessmode.Read, 0); err != nil {
		return nil, err
	}
	return a.snapshot(), nil
}

// ReadNonBlocking performs a non-blocking read and returns the cooked slice.
func (a *OneDAccessor[T]) ReadNonBlocking(ctx context.Context) ([]T, error) {
	if err := singleTransfer(ctx, a.elem, accessmode.ReadNonBlocking, 0); err != nil {
		return nil, err
	}
	return a.snapshot(), nil
}

// ReadLatest performs a read-latest and returns the cooked slice.
func (a *OneDAccessor[T]) ReadLatest(ctx context.Context) ([]T, error) {
	if err := singleTransfer(ctx, a.elem, accessmode.ReadLatest, 0); err != nil {
		return nil, err
	}
	return a.snapshot(), nil
}

// At returns the cooked value at element index i, from the last read.
func (a *OneDAccessor[T]) At(i int) T { return a.elem.Get(0, i) }

// SetAt stages a value at element index i for the next write.
func (a *OneDAccessor[T]) SetAt(i int, v T) { a.elem.Set(0, i, v) }

// Write stages values and performs a blocking write.
func (a *OneDAccessor[T]) Write(ctx context.Context, values []T) error {
	for i, v := range values {
		a.elem.Set(0, i, v)
	}
	return singleTransfer(ctx, a.elem, accessmode.Write, a.elem.VersionNumber())
}

// WriteDestructively writes values without regard for the accessor's
// current version number.
func (a *OneDAccessor[T]) WriteDestructively(ctx context.Context, values []T) error {
	for i, v := range values {
		a.elem.Set(0, i, v)
	}
	return singleTransfer(ctx, a.elem, accessmode.Write, NextVersionNumber())
}

// Element exposes the underlying TransferElement, for adding to a group.
func (a *OneDAccessor[T]) Element() TransferElement { return a.elem }

func (a *OneDAccessor[T]) snapshot() []T {
	out := make([]T, a.elem.Elements())
	for i := range out {
		out[i] = a.elem.Get(0, i)
	}
	return out
}

// TwoDAccessor is a thin user-facing handle over a multi-channel,
// multi-element Typed[T] accessor.
type TwoDAccessor[T converter.Numeric] struct {
	elem Typed[T]
}

// NewTwoDAccessor wraps elem as a TwoDAccessor.
func NewTwoDAccessor[T converter.Numeric](elem Typed[T]) *TwoDAccessor[T] {
	return &TwoDAccessor[T]{elem: elem}
}

// Channels reports the number of channels.
func (a *TwoDAccessor[T]) Channels() int { return a.elem.Channels() }

// Elements reports the number of elements per channel.
func (a *TwoDAccessor[T]) Elements() int { return a.elem.Elements() }

// Read performs a blocking read and returns the cooked channels x elements
// grid.
func (a *TwoDAccessor[T]) Read(ctx context.Context) ([][]T, error) {
	if err := singleTransfer(ctx, a.elem, accessmode.Read, 0); err != nil {
		return nil, err
	}
	return a.snapshot(), nil
}

// At returns the cooked value at (channel, element), from the last read.
func (a *TwoDAccessor[T]) At(channel, element int) T { return a.elem.Get(channel, element) }

// SetAt stages a value at (channel, element) for the next write.
func (a *TwoDAccessor[T]) SetAt(channel, element int, v T) { a.elem.Set(channel, element, v) }

// Write performs a blocking write of the currently staged grid.
func (a *TwoDAccessor[T]) Write(ctx context.Context) error {
	return singleTransfer(ctx, a.elem, accessmode.Write, a.elem.VersionNumber())
}

// WriteDestructively writes the currently staged grid without regard for
// the accessor's current version number.
func (a *TwoDAccessor[T]) WriteDestructively(ctx context.Context) error {
	return singleTransfer(ctx, a.elem, accessmode.Write, NextVersionNumber())
}

// Element exposes the underlying TransferElement, for adding to a group.
func (a *TwoDAccessor[T]) Element() TransferElement { return a.elem }

func (a *TwoDAccessor[T]) snapshot() [][]T {
	out := make([][]T, a.elem.Channels())
	for c := range out {
		out[c] = make([]T, a.elem.Elements())
		for e := range out[c] {
			out[c][e] = a.elem.Get(c, e)
		}
	}
	return out
}

// VoidAccessor is a thin user-facing handle over a VoidLeaf: no buffer, a
// read or write simply performs the bare transfer. Construction enforces
// the rule that a synchronous void accessor (no wait_for_new_data) must be
// over a writeable register.
type VoidAccessor struct {
	elem *VoidLeaf
}

// NewVoidAccessor wraps elem as a VoidAccessor. elem's own constructor
// (NewVoidLeaf) already enforces the access-mode/direction consistency
// rule, so this is a thin, always-succeeding wrapper.
func NewVoidAccessor(elem *VoidLeaf) *VoidAccessor {
	return &VoidAccessor{elem: elem}
}

// Read performs a blocking read. It raises a logic_error on a synchronous
// (non wait_for_new_data) void accessor, since there is nothing to wait on.
func (a *VoidAccessor) Read(ctx context.Context) error {
	return singleTransfer(ctx, a.elem, accessmode.Read, 0)
}

// ReadNonBlocking performs a non-blocking read.
func (a *VoidAccessor) ReadNonBlocking(ctx context.Context) error {
	return singleTransfer(ctx, a.elem, accessmode.ReadNonBlocking, 0)
}

// ReadLatest performs a read-latest.
func (a *VoidAccessor) ReadLatest(ctx context.Context) error {
	return singleTransfer(ctx, a.elem, accessmode.ReadLatest, 0)
}

// Write performs exactly one zero-byte-payload write to the backend.
func (a *VoidAccessor) Write(ctx context.Context) error {
	return singleTransfer(ctx, a.elem, accessmode.Write, a.elem.VersionNumber())
}

// WriteDestructively writes without regard for the accessor's current
// version number.
func (a *VoidAccessor) WriteDestructively(ctx context.Context) error {
	return singleTransfer(ctx, a.elem, accessmode.Write, NextVersionNumber())
}

// Element exposes the underlying TransferElement, for adding to a group.
func (a *VoidAccessor) Element() TransferElement { return a.elem }
