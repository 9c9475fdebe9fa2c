package pcie

import "fmt"

// region is one address space's window into the backing resource file: a
// contiguous byte range starting at fileOffset, sized size. Regions are
// laid out back to back in the order they were added, the same running
// running-offset bookkeeping the teacher's Blockman uses for flash erase
// regions, generalized from "block size * block count" to "one region per
// address space."
type region struct {
	addressSpaceID int
	fileOffset     int64
	size           int64
}

// addressMap lays out the address spaces a pcie backend exposes within one
// backing file, and answers "where in the file does address space N live."
type addressMap struct {
	totalSize int64
	regions   []region
	byID      map[int]region
}

func newAddressMap() *addressMap {
	return &addressMap{byID: make(map[int]region)}
}

// addRegion appends a size-byte window for addressSpaceID immediately after
// the previous region, and returns an error if addressSpaceID was already
// added.
func (m *addressMap) addRegion(addressSpaceID int, size int64) error {
	if _, exists := m.byID[addressSpaceID]; exists {
		return fmt.Errorf("address space %d already mapped", addressSpaceID)
	}
	r := region{
		addressSpaceID: addressSpaceID,
		fileOffset:     m.totalSize,
		size:           size,
	}
	m.regions = append(m.regions, r)
	m.byID[addressSpaceID] = r
	m.totalSize += size
	return nil
}

// lookup returns the region backing addressSpaceID.
func (m *addressMap) lookup(addressSpaceID int) (region, error) {
	r, ok := m.byID[addressSpaceID]
	if !ok {
		return region{}, fmt.Errorf("no address space %d in map", addressSpaceID)
	}
	return r, nil
}

// String implements Stringer.
func (m *addressMap) String() string {
	info := fmt.Sprintf("%d address spaces, total size 0x%X\n", len(m.regions), m.totalSize)
	for _, r := range m.regions {
		info += fmt.Sprintf("  space #%d: file offset 0x%X, size 0x%X\n", r.addressSpaceID, r.fileOffset, r.size)
	}
	return info
}
