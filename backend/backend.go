// Package backend defines the transfer-engine contract every concrete
// register backend must satisfy: open/close lifecycle, byte-range
// read/write over an (address space, byte offset) pair, catalogue access,
// and the recovery-on-runtime-error facet the accessor/group layers drive.
package backend

import (
	"context"

	"github.com/chimeradev/regaccess/catalogue"
)

// Backend is a transfer engine: something that can move raw bytes in and
// out of an addressable register space. Every concrete backend (pcie,
// remote, dummy, logicalname) implements this.
type Backend interface {
	// Name returns a human-readable description of the backend, not
	// machine readable.
	Name() string

	// Open connects to the backend. It may block; ctx governs the
	// connection attempt only, not subsequent transfers. Calling Open on
	// an already-open backend is a LogicError.
	Open(ctx context.Context) error

	// Close disconnects. Calling Close on a backend that is not open is
	// a LogicError.
	Close(ctx context.Context) error

	// IsOpen reports whether the backend is currently connected.
	IsOpen() bool

	// ReadArea reads len(buf) bytes starting at byteOffset within
	// addressSpaceID into buf.
	ReadArea(ctx context.Context, addressSpaceID int, byteOffset int64, buf []byte) error

	// WriteArea writes buf starting at byteOffset within addressSpaceID.
	WriteArea(ctx context.Context, addressSpaceID int, byteOffset int64, buf []byte) error

	// Catalogue returns the backend's register metadata. The returned
	// value must not be mutated by the caller.
	Catalogue() *catalogue.Catalogue
}

// ExceptionBackend is the recovery facet of Backend: a backend that has
// observed a RuntimeError marks itself as needing recovery, and every
// subsequent transfer on any accessor bound to it fails fast until
// Recover succeeds.
type ExceptionBackend interface {
	Backend

	// MarkForRecovery records that a runtime error was observed and the
	// backend must be recovered before further transfers are attempted.
	MarkForRecovery()

	// NeedsRecovery reports whether MarkForRecovery has been called since
	// the last successful Recover.
	NeedsRecovery() bool

	// Recover attempts to restore the backend to a usable state (for
	// example, reopening a dropped connection). On success subsequent
	// transfers are allowed again.
	Recover(ctx context.Context) error
}

// Constructor builds a Backend from a backend-specific URI (as parsed by
// the registry package's SDM/legacy URI grammar) and the catalogue loaded
// for it.
type Constructor func(uri string, cat *catalogue.Catalogue) (Backend, error)

// Factory is a name -> Constructor registry, the Go analogue of picking a
// backend implementation by scheme at device-open time.
type Factory struct {
	constructors map[string]Constructor
}

// NewFactory returns an empty Factory.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for scheme.
func (f *Factory) Register(scheme string, ctor Constructor) {
	f.constructors[scheme] = ctor
}

// Build constructs a Backend for scheme using its registered Constructor.
func (f *Factory) Build(scheme, uri string, cat *catalogue.Catalogue) (Backend, error) {
	ctor, ok := f.constructors[scheme]
	if !ok {
		return nil, &unknownSchemeError{scheme: scheme}
	}
	return ctor(uri, cat)
}

type unknownSchemeError struct {
	scheme string
}

func (e *unknownSchemeError) Error() string {
	return "backend: no constructor registered for scheme " + e.scheme
}
