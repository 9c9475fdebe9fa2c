// Package logicalname implements a composite backend.Backend that remaps a
// set of logical address-space ids onto address spaces of one or more
// already-constructed underlying backends, presenting them as a single
// backend.Backend. It generalizes the teacher's EmulatorDevice, which
// wraps one pmb887x.Device and forwards every call to it 1:1, to forward
// by logical-id lookup across possibly several underlying backends
// instead of always delegating to the same single one.
package logicalname

import (
	"context"
	"fmt"

	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

// Target is where a logical address space actually lives: a backend plus
// the address-space id to use when talking to it.
type Target struct {
	Backend        backend.Backend
	AddressSpaceID int
}

// Backend composes a set of underlying backends under one logical
// address-space namespace.
type Backend struct {
	name string
	cat  *catalogue.Catalogue
	byID map[int]Target

	open bool
}

// New returns a Backend presenting the given logical-id -> Target mapping
// under cat.
func New(name string, cat *catalogue.Catalogue, mapping map[int]Target) *Backend {
	byID := make(map[int]Target, len(mapping))
	for id, t := range mapping {
		byID[id] = t
	}
	return &Backend{name: name, cat: cat, byID: byID}
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return fmt.Sprintf("logical-name backend %q (%d underlying address spaces)", b.name, len(b.byID))
}

// Open implements backend.Backend. It opens every distinct underlying
// backend that is not already open.
func (b *Backend) Open(ctx context.Context) error {
	if b.open {
		return deverr.NewLogic("logical-name backend %q is already open", b.name)
	}
	for _, underlying := range b.distinctUnderlying() {
		if underlying.IsOpen() {
			continue
		}
		if err := underlying.Open(ctx); err != nil {
			return deverr.WrapRuntime(fmt.Sprintf("logical-name backend %q: opening %s", b.name, underlying.Name()), err)
		}
	}
	b.open = true
	return nil
}

// Close implements backend.Backend. It closes every distinct underlying
// backend that is currently open.
func (b *Backend) Close(ctx context.Context) error {
	if !b.open {
		return deverr.NewLogic("logical-name backend %q is not open", b.name)
	}
	for _, underlying := range b.distinctUnderlying() {
		if !underlying.IsOpen() {
			continue
		}
		if err := underlying.Close(ctx); err != nil {
			return deverr.WrapRuntime(fmt.Sprintf("logical-name backend %q: closing %s", b.name, underlying.Name()), err)
		}
	}
	b.open = false
	return nil
}

// IsOpen implements backend.Backend.
func (b *Backend) IsOpen() bool {
	return b.open
}

// Catalogue implements backend.Backend.
func (b *Backend) Catalogue() *catalogue.Catalogue {
	return b.cat
}

// ReadArea implements backend.Backend: addressSpaceID is a logical id,
// translated to its Target's underlying backend and address-space id.
func (b *Backend) ReadArea(ctx context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	if !b.open {
		return deverr.NewLogic("logical-name backend %q: read on a closed backend", b.name)
	}
	t, err := b.resolve(addressSpaceID)
	if err != nil {
		return err
	}
	return t.Backend.ReadArea(ctx, t.AddressSpaceID, byteOffset, buf)
}

// WriteArea implements backend.Backend.
func (b *Backend) WriteArea(ctx context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	if !b.open {
		return deverr.NewLogic("logical-name backend %q: write on a closed backend", b.name)
	}
	t, err := b.resolve(addressSpaceID)
	if err != nil {
		return err
	}
	return t.Backend.WriteArea(ctx, t.AddressSpaceID, byteOffset, buf)
}

// MarkForRecovery implements backend.ExceptionBackend by marking every
// distinct underlying ExceptionBackend for recovery.
func (b *Backend) MarkForRecovery() {
	for _, underlying := range b.distinctUnderlying() {
		if eb, ok := underlying.(backend.ExceptionBackend); ok {
			eb.MarkForRecovery()
		}
	}
}

// NeedsRecovery implements backend.ExceptionBackend: true if any
// underlying ExceptionBackend needs recovery.
func (b *Backend) NeedsRecovery() bool {
	for _, underlying := range b.distinctUnderlying() {
		if eb, ok := underlying.(backend.ExceptionBackend); ok && eb.NeedsRecovery() {
			return true
		}
	}
	return false
}

// Recover implements backend.ExceptionBackend: recovers every distinct
// underlying ExceptionBackend that needs it.
func (b *Backend) Recover(ctx context.Context) error {
	for _, underlying := range b.distinctUnderlying() {
		eb, ok := underlying.(backend.ExceptionBackend)
		if !ok || !eb.NeedsRecovery() {
			continue
		}
		if err := eb.Recover(ctx); err != nil {
			return deverr.WrapRuntime(fmt.Sprintf("logical-name backend %q: recovering %s", b.name, underlying.Name()), err)
		}
	}
	return nil
}

func (b *Backend) resolve(addressSpaceID int) (Target, error) {
	t, ok := b.byID[addressSpaceID]
	if !ok {
		return Target{}, deverr.NewLogic("logical-name backend %q: no logical address space %d", b.name, addressSpaceID)
	}
	return t, nil
}

func (b *Backend) distinctUnderlying() []backend.Backend {
	seen := make(map[backend.Backend]bool)
	var out []backend.Backend
	for _, t := range b.byID {
		if seen[t.Backend] {
			continue
		}
		seen[t.Backend] = true
		out = append(out, t.Backend)
	}
	return out
}
