// Package pcie implements a memory-mapped backend.Backend over a plain
// file standing in for a PCIe resource file: the portable Go analogue of
// the original implementation's ioctl/mmap glue, without a kernel driver
// or CGo. Address spaces ("BARs") are laid out back to back inside one
// backing file and mapped once at Open time with unix.Mmap; reads and
// writes are plain byte-slice copies against the mapping, the same role
// pread/pwrite play for the original's directRead/directWrite path.
package pcie

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
)

// Backend is a memory-mapped byte-range backend.
type Backend struct {
	path string
	cat  *catalogue.Catalogue
	addr *addressMap

	file          *os.File
	mapped        []byte
	open          bool
	needsRecovery bool
}

// New returns a Backend that will map path's contents at Open time.
// spaceSizes lays out one contiguous region per address space id, in
// ascending id order, back to back inside the file; the file must be at
// least as large as the sum of the sizes.
func New(path string, cat *catalogue.Catalogue, spaceSizes map[int]int64) (*Backend, error) {
	addr := newAddressMap()
	ids := sortedKeys(spaceSizes)
	for _, id := range ids {
		if err := addr.addRegion(id, spaceSizes[id]); err != nil {
			return nil, err
		}
	}
	return &Backend{path: path, cat: cat, addr: addr}, nil
}

func sortedKeys(m map[int]int64) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// Name implements backend.Backend.
func (b *Backend) Name() string {
	return fmt.Sprintf("pcie backend %q", b.path)
}

// Open implements backend.Backend. It opens the resource file and mmaps
// the full address-space layout into process memory, matching the
// original's determineDriverAndConfigureIoctl-then-mmap sequence minus
// the driver probing (there is no kernel driver here).
func (b *Backend) Open(_ context.Context) error {
	if b.open {
		return deverr.NewLogic("pcie backend %q is already open", b.path)
	}

	f, err := os.OpenFile(b.path, os.O_RDWR, 0)
	if err != nil {
		return deverr.WrapRuntime(fmt.Sprintf("pcie backend %q: cannot open resource file", b.path), err)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(b.addr.totalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return deverr.WrapRuntime(fmt.Sprintf("pcie backend %q: mmap failed", b.path), err)
	}

	b.file = f
	b.mapped = mapped
	b.open = true
	b.needsRecovery = false
	return nil
}

// Close implements backend.Backend.
func (b *Backend) Close(_ context.Context) error {
	if !b.open {
		return deverr.NewLogic("pcie backend %q is not open", b.path)
	}
	if err := unix.Munmap(b.mapped); err != nil {
		return deverr.WrapRuntime(fmt.Sprintf("pcie backend %q: munmap failed", b.path), err)
	}
	if err := b.file.Close(); err != nil {
		return deverr.WrapRuntime(fmt.Sprintf("pcie backend %q: close failed", b.path), err)
	}
	b.mapped = nil
	b.file = nil
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

// ReadArea implements backend.Backend.
func (b *Backend) ReadArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	if !b.open {
		return deverr.NewLogic("pcie backend %q: read on a closed backend", b.path)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("pcie backend %q: needs recovery before further transfers", b.path)
	}
	if err := checkWordAligned(b.path, len(buf)); err != nil {
		return err
	}
	absOffset, err := b.absoluteOffset(addressSpaceID, byteOffset, int64(len(buf)))
	if err != nil {
		return err
	}
	copy(buf, b.mapped[absOffset:absOffset+int64(len(buf))])
	return nil
}

// WriteArea implements backend.Backend.
func (b *Backend) WriteArea(_ context.Context, addressSpaceID int, byteOffset int64, buf []byte) error {
	if !b.open {
		return deverr.NewLogic("pcie backend %q: write on a closed backend", b.path)
	}
	if b.needsRecovery {
		return deverr.NewRuntime("pcie backend %q: needs recovery before further transfers", b.path)
	}
	if err := checkWordAligned(b.path, len(buf)); err != nil {
		return err
	}
	absOffset, err := b.absoluteOffset(addressSpaceID, byteOffset, int64(len(buf)))
	if err != nil {
		return err
	}
	copy(b.mapped[absOffset:absOffset+int64(len(buf))], buf)
	return nil
}

// checkWordAligned enforces the PCIe-style backend rule that every
// transfer's length is a multiple of 4 bytes.
func checkWordAligned(path string, length int) error {
	if length%4 != 0 {
		return deverr.NewRuntime("pcie backend %q: transfer length %d is not a multiple of 4 bytes", path, length)
	}
	return nil
}

// MarkForRecovery implements backend.ExceptionBackend.
func (b *Backend) MarkForRecovery() {
	b.needsRecovery = true
}

// NeedsRecovery implements backend.ExceptionBackend.
func (b *Backend) NeedsRecovery() bool {
	return b.needsRecovery
}

// Recover implements backend.ExceptionBackend: remaps the resource file,
// the Go equivalent of the original reopening its device fd after a
// driver-side error.
func (b *Backend) Recover(ctx context.Context) error {
	if b.open {
		_ = b.Close(ctx)
	}
	if err := b.Open(ctx); err != nil {
		return err
	}
	b.needsRecovery = false
	return nil
}

func (b *Backend) absoluteOffset(addressSpaceID int, byteOffset, length int64) (int64, error) {
	r, err := b.addr.lookup(addressSpaceID)
	if err != nil {
		return 0, deverr.WrapLogic(fmt.Sprintf("pcie backend %q", b.path), err)
	}
	if byteOffset < 0 || byteOffset+length > r.size {
		return 0, deverr.NewLogic("pcie backend %q: access [0x%x,0x%x) out of bounds for address space %d (size 0x%x)",
			b.path, byteOffset, byteOffset+length, addressSpaceID, r.size)
	}
	return r.fileOffset + byteOffset, nil
}
