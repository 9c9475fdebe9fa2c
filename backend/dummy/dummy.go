// Package dummy implements a pure in-memory Backend: every address space is
// a plain byte slice, sized at construction time. It exists to give the
// accessor/group/catalogue layers a real backend to transfer against in
// tests, the same role FullflashFile plays for the teacher's patch tooling
// but with the backing file replaced by memory.
package dummy

import (
	"context"
	"fmt"
	"sync"

	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

// Backend is an in-memory register space. Reads and writes outside a
// configured address space's size fail with a LogicError, mirroring the
// bounds check FullflashFile performs against its file size.
type Backend struct {
	mu     sync.Mutex
	name   string
	cat    *catalogue.Catalogue
	spaces map[int][]byte

	open          bool
	needsRecovery bool
}

// New returns a Backend with the given catalogue and address-space sizes
// (addressSpaceID -> byte count). The backend starts closed.
func New(name string, cat *catalogue.Catalogue, spaceSizes map[int]int64) *Backend {
	spaces := make(map[int][]byte, len(spaceSizes))
	for id, size := range spaceSizes {
		spaces[id] = make([]byte, size)
	}
	return &Backend{name: name, cat: cat, spaces: spaces}
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return fmt.Sprintf("dummy backend %q", b.name)
}

// Open implements backend.Backend.
func (b *Backend) Open(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return deverr.NewLogic("dummy backend %q is already open", b.name)
	}
	b.open = true
	b.needsRecovery = false
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return deverr.NewLogic("dummy backend %q is not open", b.name)
	}
	b.open = false
	return nil
}

// IsOpen implements backend.Backend.
func (b *Backend) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Catalogue implements backend.Backend.
func (b *Backend) Catalogue() *catalogue.Catalogue {
	return b.cat
}

// ReadArea implements backend.Backend.
func (b *Backend) ReadArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return deverr.NewLogic("dummy backend %q: read on a closed backend", b.name)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("dummy backend %q: needs recovery before further transfers", b.name)
	}
	space, err := b.space(addressSpaceID)
	if err != nil {
		return err
	}
	if byteOffset < 0 || byteOffset+int64(len(buf)) > int64(len(space)) {
		return deverr.NewLogic("dummy backend %q: read [0x%x,0x%x) out of bounds for address space %d (size %d)",
			b.name, byteOffset, byteOffset+int64(len(buf)), addressSpaceID, len(space))
	}
	copy(buf, space[byteOffset:byteOffset+int64(len(buf))])
	return nil
}

// WriteArea implements backend.Backend.
func (b *Backend) WriteArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return deverr.NewLogic("dummy backend %q: write on a closed backend", b.name)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("dummy backend %q: needs recovery before further transfers", b.name)
	}
	space, err := b.space(addressSpaceID)
	if err != nil {
		return err
	}
	if byteOffset < 0 || byteOffset+int64(len(buf)) > int64(len(space)) {
		return deverr.NewLogic("dummy backend %q: write [0x%x,0x%x) out of bounds for address space %d (size %d)",
			b.name, byteOffset, byteOffset+int64(len(buf)), addressSpaceID, len(space))
	}
	copy(space[byteOffset:byteOffset+int64(len(buf))], buf)
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

// Recover implements backend.ExceptionBackend. The dummy backend never
// actually fails in a way that requires reconnecting, so recovery always
// succeeds as long as the backend is open.
func (b *Backend) Recover(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return deverr.NewLogic("dummy backend %q: cannot recover a closed backend", b.name)
	}
	b.needsRecovery = false
	return nil
}

func (b *Backend) space(addressSpaceID int) ([]byte, error) {
	space, ok := b.spaces[addressSpaceID]
	if !ok {
		return nil, deverr.NewLogic("dummy backend %q: no address space %d", b.name, addressSpaceID)
	}
	return space, nil
}
