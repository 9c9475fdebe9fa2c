// Package accessor implements the N-dimensional typed accessor: the
// composition DAG of hardware leaves, decorators, and user-facing
// abstractor handles that TransferGroup coalesces and drives.
package accessor

import (
	"context"
	"sync/atomic"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/backend"
)

// VersionNumber is the monotonically increasing stamp carried by every
// successful read, shared across the whole process the way the original
// implementation's version numbers are global, not per-accessor.
type VersionNumber uint64

var versionCounter uint64

// NextVersionNumber returns a VersionNumber strictly greater than every
// VersionNumber previously returned.
func NextVersionNumber() VersionNumber {
	return VersionNumber(atomic.AddUint64(&versionCounter, 1))
}

// BackendIdentity identifies the exact hardware transfer a leaf element
// performs: which backend, which address space, at which byte offset.
// Two leaves with equal BackendIdentity are transferring the same data and
// can be coalesced into one.
type BackendIdentity struct {
	Backend        backend.Backend
	AddressSpaceID int
	ByteOffset     int64
}

// Equal reports whether two identities refer to the same backend transfer.
func (id BackendIdentity) Equal(other BackendIdentity) bool {
	return id.Backend == other.Backend && id.AddressSpaceID == other.AddressSpaceID && id.ByteOffset == other.ByteOffset
}

// TransferElement is the protocol implemented by every node of the
// accessor composition DAG: hardware leaves, copy decorators, and
// numeric-cast decorators.
type TransferElement interface {
	Kind() Kind
	Name() string

	IsReadable() bool
	IsWriteable() bool
	IsReadOnly() bool
	AccessModeFlags() accessmode.Flags

	VersionNumber() VersionNumber
	DataValidity() accessmode.Validity
	ActiveException() error

	PreRead(t accessmode.TransferType) error
	ReadTransfer(ctx context.Context)
	PostRead(t accessmode.TransferType, updateBuffer bool) error

	PreWrite(t accessmode.TransferType, version VersionNumber) error
	WriteTransfer(ctx context.Context, version VersionNumber)
	PostWrite(t accessmode.TransferType, version VersionNumber) error

	InternalElements() []TransferElement
	HardwareAccessingElements() []TransferElement
	ReplaceTransferElement(candidate TransferElement) bool

	BackendIdentity() (BackendIdentity, bool)

	InGroup() bool
	MarkGroupOwned()

	ExceptionBackend() (backend.ExceptionBackend, bool)
}

// Typed is the buffer-access facet of a TransferElement whose payload is a
// channels x elements grid of T. Leaves and decorators implement it;
// TransferGroup never needs it (it only drives the untyped lifecycle), so
// it is kept separate from TransferElement rather than folded into it.
type Typed[T any] interface {
	TransferElement
	Channels() int
	Elements() int
	Get(channel, element int) T
	Set(channel, element int, v T)
}
