package device

import (
	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/accessor"
	"github.com/chimeradev/regaccess/converter"
)

// GetAccessor resolves path in d's catalogue and returns a typed leaf
// accessor over numWords elements starting at wordOffset (numWords == 0
// means the whole register, per the register-access convention).
// Repeated calls with identical (path, numWords, wordOffset, flags, T)
// against the same Device return the same underlying leaf, so composing
// them into one group.Group coalesces to a single hardware transfer. It
// is a LogicError to request a typed accessor for a void register, or to
// request access_mode.Raw with a T that doesn't match the register's raw
// word type.
func GetAccessor[T converter.Numeric](d *Device, path string, numWords, wordOffset int, flags accessmode.Flags) (accessor.Typed[T], error) {
	info, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	if len(info.Channels) == 0 {
		return nil, wrongKindError(path, false)
	}
	resolvedNum := numWords
	if resolvedNum == 0 {
		resolvedNum = info.ElementCount - wordOffset
	}
	key := leafKey{
		path:          info.Path.String(),
		elementOffset: wordOffset,
		numElements:   resolvedNum,
		flags:         flags,
		typeTag:       leafTypeTag[T](),
	}
	return cachedLeaf(d, key, func() (accessor.Typed[T], error) {
		return accessor.NewLeaf[T](d.be, info, wordOffset, numWords, flags)
	})
}

// GetVoidAccessor resolves path as a void register and returns its leaf.
// It is a LogicError to request a void accessor for a register that has
// channels.
func GetVoidAccessor(d *Device, path string, flags accessmode.Flags) (*accessor.VoidLeaf, error) {
	info, err := d.lookup(path)
	if err != nil {
		return nil, err
	}
	if len(info.Channels) != 0 {
		return nil, wrongKindError(path, true)
	}
	key := leafKey{path: info.Path.String(), flags: flags, typeTag: "void"}
	return cachedLeaf(d, key, func() (*accessor.VoidLeaf, error) {
		return accessor.NewVoidLeaf(d.be, info, flags)
	})
}

// GetScalarAccessor is GetAccessor specialized to a single-element handle.
func GetScalarAccessor[T converter.Numeric](d *Device, path string, flags accessmode.Flags) (*accessor.ScalarAccessor[T], error) {
	elem, err := GetAccessor[T](d, path, 1, 0, flags)
	if err != nil {
		return nil, err
	}
	return accessor.NewScalarAccessor[T](elem), nil
}

// GetOneDAccessor is GetAccessor specialized to a one-dimensional handle.
func GetOneDAccessor[T converter.Numeric](d *Device, path string, numWords, wordOffset int, flags accessmode.Flags) (*accessor.OneDAccessor[T], error) {
	elem, err := GetAccessor[T](d, path, numWords, wordOffset, flags)
	if err != nil {
		return nil, err
	}
	return accessor.NewOneDAccessor[T](elem), nil
}

// GetTwoDAccessor is GetAccessor specialized to a two-dimensional handle
// spanning every channel of the register.
func GetTwoDAccessor[T converter.Numeric](d *Device, path string, flags accessmode.Flags) (*accessor.TwoDAccessor[T], error) {
	elem, err := GetAccessor[T](d, path, 0, 0, flags)
	if err != nil {
		return nil, err
	}
	return accessor.NewTwoDAccessor[T](elem), nil
}

// GetVoidAccessorHandle wraps GetVoidAccessor's leaf in the user-facing
// VoidAccessor abstractor.
func GetVoidAccessorHandle(d *Device, path string, flags accessmode.Flags) (*accessor.VoidAccessor, error) {
	leaf, err := GetVoidAccessor(d, path, flags)
	if err != nil {
		return nil, err
	}
	return accessor.NewVoidAccessor(leaf), nil
}
