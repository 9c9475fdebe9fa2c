package accessor

import (
	"context"

	"github.com/chimeradev/regaccess/backend"
)

// Block is one physical backend transfer shared by every leaf whose byte
// range was merged into it. TransferGroup builds one Block per maximal run
// of overlapping or touching byte ranges within a single (backend, address
// space) pair, so that several leaves covering overlapping ranges produce
// exactly one ReadArea or WriteArea call instead of one per leaf — the same
// role the original implementation's NumericAddressedBackend block search
// plays ahead of a TransferGroup's read/write.
type Block struct {
	be             backend.Backend
	addressSpaceID int
	byteOffset     int64
	raw            []byte
	members        []joinedMember
}

type joinedMember struct {
	m             blockMember
	offsetInBlock int64
	length        int64
}

// NewBlock returns an empty Block spanning [byteOffset, byteOffset+length)
// of addressSpaceID on be.
func NewBlock(be backend.Backend, addressSpaceID int, byteOffset, length int64) *Block {
	return &Block{be: be, addressSpaceID: addressSpaceID, byteOffset: byteOffset, raw: make([]byte, length)}
}

// Join attaches member's byte range to the block and gives member a view
// into the block's shared raw buffer at the matching offset.
func (b *Block) Join(member blockMember, memberByteOffset, length int64) {
	offset := memberByteOffset - b.byteOffset
	b.members = append(b.members, joinedMember{m: member, offsetInBlock: offset, length: length})
	member.setBlock(b, offset)
}

// Read performs the block's single backend read and delivers each member
// its own sub-slice of the result.
func (b *Block) Read(ctx context.Context) {
	err := b.be.ReadArea(ctx, b.addressSpaceID, b.byteOffset, b.raw)
	for _, jm := range b.members {
		if err != nil {
			jm.m.receiveBlockRead(nil, err)
			continue
		}
		jm.m.receiveBlockRead(b.raw[jm.offsetInBlock:jm.offsetInBlock+jm.length], nil)
	}
}

// Write performs the block's single backend write, after every member has
// already encoded its share into the block's raw buffer via WriteTransfer.
func (b *Block) Write(ctx context.Context) {
	err := b.be.WriteArea(ctx, b.addressSpaceID, b.byteOffset, b.raw)
	for _, jm := range b.members {
		jm.m.receiveBlockWriteResult(err)
	}
}

func (b *Block) slice(offsetInBlock, length int64) []byte {
	return b.raw[offsetInBlock : offsetInBlock+length]
}

// blockMember is implemented by hardware leaves that can share one Block
// with others whose byte ranges overlap or touch theirs.
type blockMember interface {
	ByteRange() (be backend.Backend, addressSpaceID int, byteOffset, length int64)
	setBlock(b *Block, offsetInBlock int64)
	receiveBlockRead(raw []byte, err error)
	receiveBlockWriteResult(err error)
}

// BlockJoinable is the exported view TransferGroup plans blocks against: a
// leaf that implements it can be merged with others sharing an overlapping
// or adjacent byte range on the same backend and address space.
type BlockJoinable interface {
	TransferElement
	blockMember
}
