package dbaccess

import (
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ghastnet/ghastd/util/daghash"
)

var (
	// blockKeyPrefix keys serialized headers by acceptance sequence. The
	// sequence is encoded big-endian so a prefix scan yields blocks in
	// their original acceptance order, which is exactly the order startup
	// replay needs.
	blockKeyPrefix = []byte("block/")

	// blockHashKeyPrefix maps a block hash to its acceptance sequence.
	blockHashKeyPrefix = []byte("block-hash/")
)

func blockKey(sequence uint64) []byte {
	key := make([]byte, len(blockKeyPrefix)+8)
	copy(key, blockKeyPrefix)
	binary.BigEndian.PutUint64(key[len(blockKeyPrefix):], sequence)
	return key
}

func blockHashKey(hash *daghash.Hash) []byte {
	key := make([]byte, len(blockHashKeyPrefix)+daghash.HashSize)
	copy(key, blockHashKeyPrefix)
	copy(key[len(blockHashKeyPrefix):], hash[:])
	return key
}

// StoreBlock stores the serialized block header under the given acceptance
// sequence and indexes it by hash. Both writes land atomically.
func (ctx *DatabaseContext) StoreBlock(sequence uint64, hash *daghash.Hash, headerBytes []byte) error {
	var sequenceBytes [8]byte
	binary.BigEndian.PutUint64(sequenceBytes[:], sequence)

	batch := new(leveldb.Batch)
	batch.Put(blockKey(sequence), headerBytes)
	batch.Put(blockHashKey(hash), sequenceBytes[:])
	if err := ctx.db.Write(batch, nil); err != nil {
		return convertNotFoundError(err)
	}

	ctx.blockCache.Add(*hash, headerBytes)
	return nil
}

// HasBlock returns whether the block identified by the given hash is stored.
func (ctx *DatabaseContext) HasBlock(hash *daghash.Hash) (bool, error) {
	if ctx.blockCache.Contains(*hash) {
		return true, nil
	}
	exists, err := ctx.db.Has(blockHashKey(hash), nil)
	if err != nil {
		return false, convertNotFoundError(err)
	}
	return exists, nil
}

// FetchBlock returns the serialized header of the block identified by the
// given hash. Returns ErrNotFound if the block is not stored.
func (ctx *DatabaseContext) FetchBlock(hash *daghash.Hash) ([]byte, error) {
	if cached, ok := ctx.blockCache.Get(*hash); ok {
		return cached.([]byte), nil
	}

	sequenceBytes, err := ctx.db.Get(blockHashKey(hash), nil)
	if err != nil {
		return nil, convertNotFoundError(err)
	}
	sequence := binary.BigEndian.Uint64(sequenceBytes)

	headerBytes, err := ctx.db.Get(blockKey(sequence), nil)
	if err != nil {
		return nil, convertNotFoundError(err)
	}

	ctx.blockCache.Add(*hash, headerBytes)
	return headerBytes, nil
}

// ForEachBlock calls fn once per stored block in acceptance order. Iteration
// stops at the first error fn returns, which is then passed through.
func (ctx *DatabaseContext) ForEachBlock(fn func(sequence uint64, headerBytes []byte) error) error {
	iterator := ctx.db.NewIterator(util.BytesPrefix(blockKeyPrefix), nil)
	defer iterator.Release()

	for iterator.Next() {
		sequence := binary.BigEndian.Uint64(iterator.Key()[len(blockKeyPrefix):])

		// The iterator reuses its value buffer between steps.
		headerBytes := make([]byte, len(iterator.Value()))
		copy(headerBytes, iterator.Value())

		if err := fn(sequence, headerBytes); err != nil {
			return err
		}
	}
	return convertNotFoundError(iterator.Error())
}
