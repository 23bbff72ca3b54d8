package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/util/daghash"
)

// MaxRefereesPerBlock is the maximum number of referee hashes a single block
// header may carry. Referee edges beyond this bound add no meaningful weight
// information and only inflate past-set unions.
const MaxRefereesPerBlock = 64

// baseBlockHeaderPayload is the number of bytes a serialized block header
// occupies before the variable-length referee list:
// Version 4 bytes + ParentHash 32 bytes + referee count 1 byte +
// Weight 8 bytes + Nonce 8 bytes + Timestamp 8 bytes.
const baseBlockHeaderPayload = 4 + daghash.HashSize + 1 + 8 + 8 + 8

// BlockHeader defines information about a block in the Tree-Graph.
// Each block names exactly one parent (the zero hash for genesis) and any
// number of referees: previously-seen blocks that are cited for weight but do
// not extend the parent tree.
type BlockHeader struct {
	// Version of the block. This is not the same as the protocol version.
	Version int32

	// ParentHash is the hash of the parent block. A block with the zero
	// parent hash is a genesis block.
	ParentHash daghash.Hash

	// RefereeHashes are hashes of non-parent blocks this block cites.
	// The list must be free of duplicates and must not name an ancestor
	// reachable through the parent chain.
	RefereeHashes []daghash.Hash

	// Weight is the block's declared difficulty-equivalent contribution to
	// subtree weight aggregation.
	Weight uint64

	// Nonce distinguishes otherwise-identical headers.
	Nonce uint64

	// Timestamp is the block's declared creation time, in milliseconds
	// since the unix epoch.
	Timestamp int64
}

// IsGenesis returns whether this header describes a genesis block, i.e. one
// with the zero parent hash.
func (h *BlockHeader) IsGenesis() bool {
	return h.ParentHash == daghash.ZeroHash
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() daghash.Hash {
	// Serializing into the hash writer cannot fail unless the referee
	// list is over the wire bound, and headers are bound-checked on every
	// ingress path before hashing matters.
	writer := daghash.NewDoubleHashWriter()
	_ = h.Serialize(writer)
	return writer.Finalize()
}

// Serialize encodes the block header into w using the canonical little-endian
// wire encoding.
func (h *BlockHeader) Serialize(w io.Writer) error {
	if len(h.RefereeHashes) > MaxRefereesPerBlock {
		return errors.Errorf("too many referee hashes in block header: %d > %d",
			len(h.RefereeHashes), MaxRefereesPerBlock)
	}

	buf := make([]byte, 0, baseBlockHeaderPayload+len(h.RefereeHashes)*daghash.HashSize)
	scratch := make([]byte, 8)

	binary.LittleEndian.PutUint32(scratch, uint32(h.Version))
	buf = append(buf, scratch[:4]...)
	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, byte(len(h.RefereeHashes)))
	for i := range h.RefereeHashes {
		buf = append(buf, h.RefereeHashes[i][:]...)
	}
	binary.LittleEndian.PutUint64(scratch, h.Weight)
	buf = append(buf, scratch...)
	binary.LittleEndian.PutUint64(scratch, h.Nonce)
	buf = append(buf, scratch...)
	binary.LittleEndian.PutUint64(scratch, uint64(h.Timestamp))
	buf = append(buf, scratch...)

	_, err := w.Write(buf)
	return errors.WithStack(err)
}

// Deserialize decodes a block header from r.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	base := make([]byte, 4+daghash.HashSize+1)
	if _, err := io.ReadFull(r, base); err != nil {
		return errors.Wrap(err, "failed reading block header prefix")
	}
	h.Version = int32(binary.LittleEndian.Uint32(base[:4]))
	copy(h.ParentHash[:], base[4:4+daghash.HashSize])

	refereeCount := int(base[4+daghash.HashSize])
	if refereeCount > MaxRefereesPerBlock {
		return errors.Errorf("too many referee hashes in block header: %d > %d",
			refereeCount, MaxRefereesPerBlock)
	}
	h.RefereeHashes = make([]daghash.Hash, refereeCount)
	for i := 0; i < refereeCount; i++ {
		if _, err := io.ReadFull(r, h.RefereeHashes[i][:]); err != nil {
			return errors.Wrap(err, "failed reading referee hash")
		}
	}

	tail := make([]byte, 24)
	if _, err := io.ReadFull(r, tail); err != nil {
		return errors.Wrap(err, "failed reading block header suffix")
	}
	h.Weight = binary.LittleEndian.Uint64(tail[:8])
	h.Nonce = binary.LittleEndian.Uint64(tail[8:16])
	h.Timestamp = int64(binary.LittleEndian.Uint64(tail[16:24]))
	return nil
}

// Bytes returns the serialized form of the header.
func (h *BlockHeader) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := h.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewBlockHeaderFromBytes deserializes a block header from its canonical
// serialized form.
func NewBlockHeaderFromBytes(serialized []byte) (*BlockHeader, error) {
	header := &BlockHeader{}
	if err := header.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, err
	}
	return header, nil
}
