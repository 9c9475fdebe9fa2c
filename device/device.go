// Package device wraps a single opened backend.Backend with the
// user-facing lifecycle and typed-accessor construction surface: open,
// close, functional/opened queries, and per-register accessor handles
// cached so that two callers asking for the same register get the same
// underlying leaf.
package device

import (
	"context"
	"fmt"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
	"github.com/chimeradev/regaccess/regpath"
)

// Device is a named register space backed by exactly one backend.Backend.
type Device struct {
	be backend.Backend

	leaves map[leafKey]any
}

// leafKey identifies one distinct leaf-accessor instance: same backend
// (implicit, since a Device wraps exactly one), same register, same
// sub-range, same access-mode flags, same element type. Two GetAccessor
// calls agreeing on all five get back the same leaf, which is what lets
// group.AddAccessor's coalescing collapse them into one hardware transfer.
type leafKey struct {
	path          string
	elementOffset int
	numElements   int
	flags         accessmode.Flags
	typeTag       string
}

// New wraps be as a Device. be must not yet be open.
func New(be backend.Backend) *Device {
	return &Device{be: be, leaves: make(map[leafKey]any)}
}

// Backend returns the underlying backend.Backend.
func (d *Device) Backend() backend.Backend { return d.be }

// Open opens the underlying backend.
func (d *Device) Open(ctx context.Context) error { return d.be.Open(ctx) }

// Close closes the underlying backend.
func (d *Device) Close(ctx context.Context) error { return d.be.Close(ctx) }

// IsOpened reports whether the underlying backend is open.
func (d *Device) IsOpened() bool { return d.be.IsOpen() }

// IsFunctional reports whether the device is open and, if its backend
// exposes recovery signalling, not currently marked for recovery.
func (d *Device) IsFunctional() bool {
	if !d.be.IsOpen() {
		return false
	}
	if eb, ok := d.be.(backend.ExceptionBackend); ok && eb.NeedsRecovery() {
		return false
	}
	return true
}

// ReadDeviceInfo returns a human-readable description of the backend.
func (d *Device) ReadDeviceInfo() string { return d.be.Name() }

// Catalogue returns the device's register catalogue.
func (d *Device) Catalogue() *catalogue.Catalogue { return d.be.Catalogue() }

// lookup resolves path to its RegisterInfo, returning a LogicError if the
// path is unknown.
func (d *Device) lookup(path string) (catalogue.RegisterInfo, error) {
	info, err := d.be.Catalogue().Get(regpath.New(path))
	if err != nil {
		return catalogue.RegisterInfo{}, err
	}
	return info, nil
}

func leafTypeTag[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

func cachedLeaf[T any](d *Device, key leafKey, build func() (T, error)) (T, error) {
	if cached, ok := d.leaves[key]; ok {
		return cached.(T), nil
	}
	leaf, err := build()
	if err != nil {
		return leaf, err
	}
	d.leaves[key] = leaf
	return leaf, nil
}

// wrongKindError is returned when a caller asks for a void accessor on a
// non-void register or vice versa.
func wrongKindError(path string, wantVoid bool) error {
	if wantVoid {
		return deverr.NewLogic("register %q has channels and is not a void register", path)
	}
	return deverr.NewLogic("register %q is a void register and has no typed channels", path)
}
