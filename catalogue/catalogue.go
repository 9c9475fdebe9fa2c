// Package catalogue implements the per-backend register metadata map: one
// RegisterInfo per register path, an insertion-ordered Catalogue to hold
// them, and the interrupt-controller-to-interrupt-id index derived from it.
package catalogue

import (
	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/descriptor"
	"github.com/chimeradev/regaccess/deverr"
	"github.com/chimeradev/regaccess/regpath"
)

// RegisterInfo is the immutable-after-load metadata for one register, as
// built once by a catalogue loader.
type RegisterInfo struct {
	Path                  regpath.Path
	ElementCount          int
	ElementPitchBits      int
	AddressSpaceID        int
	ByteOffset            int64
	AccessKind            accessmode.AccessKind
	InterruptControllerID int
	InterruptID           int
	Channels              []descriptor.ChannelInfo
}

// DataDescriptor derives the register's payload description from its
// channel list, per descriptor.FromChannels.
func (r RegisterInfo) DataDescriptor() descriptor.DataDescriptor {
	return descriptor.FromChannels(r.Channels)
}

// IsReadable reports whether the register can be read.
func (r RegisterInfo) IsReadable() bool {
	return r.AccessKind == accessmode.ReadOnly || r.AccessKind == accessmode.ReadWrite || r.AccessKind == accessmode.Interrupt
}

// IsWriteable reports whether the register can be written.
func (r RegisterInfo) IsWriteable() bool {
	return r.AccessKind == accessmode.WriteOnly || r.AccessKind == accessmode.ReadWrite
}

// SupportedAccessModes reports the access-mode flags this register allows.
func (r RegisterInfo) SupportedAccessModes() accessmode.Flags {
	var f accessmode.Flags
	if r.AccessKind == accessmode.Interrupt {
		f |= accessmode.WaitForNewData
	}
	return f
}

// Clone returns a deep copy of r; its Channels slice is independent of the
// original.
func (r RegisterInfo) Clone() RegisterInfo {
	clone := r
	clone.Channels = make([]descriptor.ChannelInfo, len(r.Channels))
	copy(clone.Channels, r.Channels)
	return clone
}

// Catalogue is an insertion-ordered map from register path to RegisterInfo.
type Catalogue struct {
	order []regpath.Path
	byKey map[string]RegisterInfo
}

// New returns an empty Catalogue.
func New() *Catalogue {
	return &Catalogue{byKey: make(map[string]RegisterInfo)}
}

// Has reports whether path is present in the catalogue.
func (c *Catalogue) Has(path regpath.Path) bool {
	_, ok := c.byKey[path.String()]
	return ok
}

// Get returns a clone of the RegisterInfo for path, or a *deverr.LogicError
// if the path is absent.
func (c *Catalogue) Get(path regpath.Path) (RegisterInfo, error) {
	info, ok := c.byKey[path.String()]
	if !ok {
		return RegisterInfo{}, deverr.NewLogic("register %q not found in catalogue", path.String())
	}
	return info.Clone(), nil
}

// Add inserts info, keyed by info.Path. A duplicate path replaces the
// existing entry in place, preserving its original position in iteration
// order.
func (c *Catalogue) Add(info RegisterInfo) {
	key := info.Path.String()
	if _, exists := c.byKey[key]; !exists {
		c.order = append(c.order, info.Path)
	}
	c.byKey[key] = info
}

// All returns every RegisterInfo in insertion order. The returned slice is a
// fresh copy; mutating it does not affect the catalogue.
func (c *Catalogue) All() []RegisterInfo {
	out := make([]RegisterInfo, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, c.byKey[p.String()])
	}
	return out
}

// Len returns the number of registers in the catalogue.
func (c *Catalogue) Len() int {
	return len(c.order)
}

// Clone returns a deep copy of the catalogue.
func (c *Catalogue) Clone() *Catalogue {
	clone := New()
	clone.order = make([]regpath.Path, len(c.order))
	copy(clone.order, c.order)
	for k, v := range c.byKey {
		clone.byKey[k] = v.Clone()
	}
	return clone
}

// InterruptMap returns, for every register with AccessKind == Interrupt, the
// set of interrupt ids registered against each controller id.
func (c *Catalogue) InterruptMap() map[int]map[int]struct{} {
	result := make(map[int]map[int]struct{})
	for _, p := range c.order {
		info := c.byKey[p.String()]
		if info.AccessKind != accessmode.Interrupt {
			continue
		}
		ids, ok := result[info.InterruptControllerID]
		if !ok {
			ids = make(map[int]struct{})
			result[info.InterruptControllerID] = ids
		}
		ids[info.InterruptID] = struct{}{}
	}
	return result
}
