package accessor

import (
	"context"

	"github.com/chimeradev/regaccess/accessmode"
	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/converter"
	"github.com/chimeradev/regaccess/deverr"
)

// Leaf is a hardware-accessing typed accessor: its transfer talks
// directly to a backend.Backend over the register's (address space, byte
// offset) and decodes/encodes through a per-channel fixed-point
// converter. It is the leaf of every composition DAG.
type Leaf[T converter.Numeric] struct {
	be   backend.Backend
	info catalogue.RegisterInfo

	elementOffset int
	numElements   int
	flags         accessmode.Flags

	bytesPerElement int
	convs           []converter.FixedPoint
	raw             []byte
	cooked          [][]T // [channel][element]

	version  VersionNumber
	validity accessmode.Validity
	activeErr error

	pendingRead  bool
	pendingWrite bool
	inGroup      bool

	excBackend backend.ExceptionBackend

	block       *Block
	blockOffset int64
}

// NewLeaf constructs a Leaf over info's register on be. numElements == 0
// means "full register" (info.ElementCount - elementOffset).
func NewLeaf[T converter.Numeric](be backend.Backend, info catalogue.RegisterInfo, elementOffset, numElements int, flags accessmode.Flags) (*Leaf[T], error) {
	if elementOffset < 0 || elementOffset > info.ElementCount {
		return nil, deverr.NewLogic("accessor %q: element offset %d out of range [0,%d]", info.Path.String(), elementOffset, info.ElementCount)
	}
	if numElements == 0 {
		numElements = info.ElementCount - elementOffset
	}
	if elementOffset+numElements > info.ElementCount {
		return nil, deverr.NewLogic("accessor %q: requested %d elements at offset %d exceeds register size %d",
			info.Path.String(), numElements, elementOffset, info.ElementCount)
	}
	if len(info.Channels) == 0 {
		return nil, deverr.NewLogic("accessor %q: a void register cannot back a typed Leaf accessor", info.Path.String())
	}

	if flags.Has(accessmode.Raw) {
		if err := validateRawType[T](info); err != nil {
			return nil, err
		}
	}

	bytesPerElement := info.ElementPitchBits / 8
	if bytesPerElement <= 0 {
		bytesPerElement = 4
	}

	convs := make([]converter.FixedPoint, len(info.Channels))
	for i, ch := range info.Channels {
		fp, err := converter.New(ch.SignificantBits, ch.FractionalBits, ch.SignedFlag)
		if err != nil {
			return nil, deverr.WrapLogic("accessor "+info.Path.String(), err)
		}
		convs[i] = fp
	}

	cooked := make([][]T, len(info.Channels))
	for i := range cooked {
		cooked[i] = make([]T, numElements)
	}

	var excBackend backend.ExceptionBackend
	if eb, ok := be.(backend.ExceptionBackend); ok {
		excBackend = eb
	}

	return &Leaf[T]{
		be:              be,
		info:            info,
		elementOffset:   elementOffset,
		numElements:     numElements,
		flags:           flags,
		bytesPerElement: bytesPerElement,
		convs:           convs,
		raw:             make([]byte, numElements*bytesPerElement),
		cooked:          cooked,
		excBackend:      excBackend,
	}, nil
}

func validateRawType[T converter.Numeric](info catalogue.RegisterInfo) error {
	var zero T
	if _, ok := any(zero).(uint32); !ok {
		return deverr.NewLogic("accessor %q: raw access mode requires the accessor's type to be uint32, matching the 32-bit raw word", info.Path.String())
	}
	return nil
}

// Kind implements TransferElement.
func (l *Leaf[T]) Kind() Kind { return KindBackendLeaf }

// Name implements TransferElement.
func (l *Leaf[T]) Name() string { return l.info.Path.String() }

// IsReadable implements TransferElement.
func (l *Leaf[T]) IsReadable() bool { return l.info.IsReadable() }

// IsWriteable implements TransferElement.
func (l *Leaf[T]) IsWriteable() bool { return l.info.IsWriteable() }

// IsReadOnly implements TransferElement.
func (l *Leaf[T]) IsReadOnly() bool { return l.info.IsReadable() && !l.info.IsWriteable() }

// AccessModeFlags implements TransferElement.
func (l *Leaf[T]) AccessModeFlags() accessmode.Flags { return l.flags }

// VersionNumber implements TransferElement.
func (l *Leaf[T]) VersionNumber() VersionNumber { return l.version }

// DataValidity implements TransferElement.
func (l *Leaf[T]) DataValidity() accessmode.Validity { return l.validity }

// ActiveException implements TransferElement.
func (l *Leaf[T]) ActiveException() error { return l.activeErr }

// Channels implements Typed.
func (l *Leaf[T]) Channels() int { return len(l.cooked) }

// Elements implements Typed.
func (l *Leaf[T]) Elements() int { return l.numElements }

// Get implements Typed.
func (l *Leaf[T]) Get(channel, element int) T { return l.cooked[channel][element] }

// Set implements Typed.
func (l *Leaf[T]) Set(channel, element int, v T) { l.cooked[channel][element] = v }

// PreRead implements TransferElement.
func (l *Leaf[T]) PreRead(_ accessmode.TransferType) error {
	if !l.IsReadable() {
		return deverr.NewLogic("accessor %q: register is not readable", l.Name())
	}
	if l.pendingRead {
		return deverr.NewLogic("accessor %q: preRead called twice without an intervening postRead", l.Name())
	}
	l.pendingRead = true
	l.activeErr = nil
	return nil
}

// ReadTransfer implements TransferElement. Runtime failures are captured
// into activeErr and never returned directly, per the accessor lifecycle
// contract. When the leaf has been joined to a Block, the actual backend
// read already happened there (see receiveBlockRead) and this is a no-op.
func (l *Leaf[T]) ReadTransfer(ctx context.Context) {
	if l.block != nil {
		return
	}
	l.activeErr = nil
	if err := l.be.ReadArea(ctx, l.info.AddressSpaceID, l.byteOffset(), l.raw); err != nil {
		l.activeErr = deverr.WrapRuntime("accessor "+l.Name()+": read transfer", err)
		if l.excBackend != nil {
			l.excBackend.MarkForRecovery()
		}
	}
}

// PostRead implements TransferElement.
func (l *Leaf[T]) PostRead(_ accessmode.TransferType, updateBuffer bool) error {
	l.pendingRead = false
	if updateBuffer && l.activeErr == nil {
		l.decode()
		l.version = NextVersionNumber()
		l.validity = accessmode.Ok
	} else {
		l.validity = accessmode.Faulty
	}
	return l.activeErr
}

// PreWrite implements TransferElement. Encoding the cooked buffer into raw
// storage is deferred to WriteTransfer, so that multiple high-level
// accessors coalesced onto the same leaf can each call PreWrite without
// tripping the idempotence guard on a leaf they merely share.
func (l *Leaf[T]) PreWrite(_ accessmode.TransferType, _ VersionNumber) error {
	if !l.IsWriteable() {
		return deverr.NewLogic("accessor %q: register is not writeable", l.Name())
	}
	if l.pendingWrite {
		return deverr.NewLogic("accessor %q: preWrite called twice without an intervening postWrite", l.Name())
	}
	l.pendingWrite = true
	l.activeErr = nil
	return nil
}

// WriteTransfer implements TransferElement. When the leaf has been joined
// to a Block, encoding lands in the block's shared buffer and the actual
// backend write is deferred to the block's own single Write call.
func (l *Leaf[T]) WriteTransfer(ctx context.Context, _ VersionNumber) {
	l.encode()
	if l.block != nil {
		copy(l.block.slice(l.blockOffset, int64(len(l.raw))), l.raw)
		return
	}
	l.activeErr = nil
	if err := l.be.WriteArea(ctx, l.info.AddressSpaceID, l.byteOffset(), l.raw); err != nil {
		l.activeErr = deverr.WrapRuntime("accessor "+l.Name()+": write transfer", err)
		if l.excBackend != nil {
			l.excBackend.MarkForRecovery()
		}
	}
}

// PostWrite implements TransferElement.
func (l *Leaf[T]) PostWrite(_ accessmode.TransferType, _ VersionNumber) error {
	l.pendingWrite = false
	return l.activeErr
}

// InternalElements implements TransferElement: a leaf has none.
func (l *Leaf[T]) InternalElements() []TransferElement { return nil }

// HardwareAccessingElements implements TransferElement: a leaf is its own
// hardware-accessing element.
func (l *Leaf[T]) HardwareAccessingElements() []TransferElement {
	return []TransferElement{l}
}

// ReplaceTransferElement implements TransferElement: a leaf has no
// internal elements, so there is never anything to replace.
func (l *Leaf[T]) ReplaceTransferElement(_ TransferElement) bool { return false }

// BackendIdentity implements TransferElement.
func (l *Leaf[T]) BackendIdentity() (BackendIdentity, bool) {
	return BackendIdentity{Backend: l.be, AddressSpaceID: l.info.AddressSpaceID, ByteOffset: l.byteOffset()}, true
}

// InGroup implements TransferElement.
func (l *Leaf[T]) InGroup() bool { return l.inGroup }

// MarkGroupOwned implements TransferElement.
func (l *Leaf[T]) MarkGroupOwned() { l.inGroup = true }

// ExceptionBackend implements TransferElement.
func (l *Leaf[T]) ExceptionBackend() (backend.ExceptionBackend, bool) {
	return l.excBackend, l.excBackend != nil
}

func (l *Leaf[T]) byteOffset() int64 {
	return l.info.ByteOffset + int64(l.elementOffset*l.bytesPerElement)
}

// ByteRange implements BlockJoinable.
func (l *Leaf[T]) ByteRange() (backend.Backend, int, int64, int64) {
	return l.be, l.info.AddressSpaceID, l.byteOffset(), int64(len(l.raw))
}

func (l *Leaf[T]) setBlock(b *Block, offsetInBlock int64) {
	l.block = b
	l.blockOffset = offsetInBlock
}

func (l *Leaf[T]) receiveBlockRead(raw []byte, err error) {
	if err != nil {
		l.activeErr = deverr.WrapRuntime("accessor "+l.Name()+": read transfer", err)
		if l.excBackend != nil {
			l.excBackend.MarkForRecovery()
		}
		return
	}
	l.activeErr = nil
	copy(l.raw, raw)
}

func (l *Leaf[T]) receiveBlockWriteResult(err error) {
	if err != nil {
		l.activeErr = deverr.WrapRuntime("accessor "+l.Name()+": write transfer", err)
		if l.excBackend != nil {
			l.excBackend.MarkForRecovery()
		}
		return
	}
	l.activeErr = nil
}

// decode unpacks each channel from its own bit sub-range of the shared
// per-element raw word. A single-channel register has BitOffsetWithinElement
// 0 and a width spanning the whole word, so this degenerates to the old
// whole-word behavior in the common case.
func (l *Leaf[T]) decode() {
	for ch := range l.convs {
		shift := uint(l.info.Channels[ch].BitOffsetWithinElement)
		mask := channelMask(l.info.Channels[ch].SignificantBits)
		for e := 0; e < l.numElements; e++ {
			word := (rawWordAt(l.raw, e, l.bytesPerElement) >> shift) & mask
			l.cooked[ch][e] = converter.ToCooked[T](l.convs[ch], word)
		}
	}
}

// encode packs each channel back into its own bit sub-range of the shared
// per-element raw word, leaving every other channel's bits in that word
// untouched.
func (l *Leaf[T]) encode() {
	for ch := range l.convs {
		shift := uint(l.info.Channels[ch].BitOffsetWithinElement)
		mask := channelMask(l.info.Channels[ch].SignificantBits)
		for e := 0; e < l.numElements; e++ {
			word := converter.FromCooked(l.convs[ch], l.cooked[ch][e]) & mask
			existing := rawWordAt(l.raw, e, l.bytesPerElement)
			merged := (existing &^ (mask << shift)) | (word << shift)
			putRawWordAt(l.raw, e, l.bytesPerElement, merged)
		}
	}
}

// channelMask returns a mask with the low width bits set.
func channelMask(width int) uint32 {
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << width) - 1
}

func rawWordAt(buf []byte, element, bytesPerElement int) uint32 {
	off := element * bytesPerElement
	var word uint32
	n := bytesPerElement
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		word |= uint32(buf[off+i]) << (8 * i)
	}
	return word
}

func putRawWordAt(buf []byte, element, bytesPerElement int, word uint32) {
	off := element * bytesPerElement
	n := bytesPerElement
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		buf[off+i] = byte(word >> (8 * i))
	}
}
