package dbaccess

import (
	"encoding/binary"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ghastnet/ghastd/util/daghash"
)

var (
	// checkpointKey holds the latest pruning-frontier block: its hash
	// followed by its big-endian pivot-chain height.
	checkpointKey = []byte("checkpoint")

	// refereeCreditKeyPrefix keys the total referee weight a retained
	// block has received from blocks that pruning evicted. Those citing
	// blocks are no longer in the store, so their finalized credits must
	// be carried separately for restart replay to rebuild the same
	// subtree weights.
	refereeCreditKeyPrefix = []byte("referee-credit/")
)

func refereeCreditKey(hash *daghash.Hash) []byte {
	key := make([]byte, len(refereeCreditKeyPrefix)+daghash.HashSize)
	copy(key, refereeCreditKeyPrefix)
	copy(key[len(refereeCreditKeyPrefix):], hash[:])
	return key
}

// PruneBlocks records the new pruning frontier and deletes the evicted blocks
// from the store in one atomic batch. sequences and hashes identify the same
// evicted blocks and must be index-aligned. refereeCredits carries, per
// retained block hash, the referee weight the evicted blocks had credited to
// it; the totals accumulate across checkpoints until the credited block is
// itself evicted.
func (ctx *DatabaseContext) PruneBlocks(sequences []uint64, hashes []*daghash.Hash,
	checkpointHash *daghash.Hash, checkpointHeight uint64,
	refereeCredits map[daghash.Hash]uint64) error {

	value := make([]byte, daghash.HashSize+8)
	copy(value, checkpointHash[:])
	binary.BigEndian.PutUint64(value[daghash.HashSize:], checkpointHeight)

	batch := new(leveldb.Batch)
	batch.Put(checkpointKey, value)
	for i, sequence := range sequences {
		batch.Delete(blockKey(sequence))
		batch.Delete(blockHashKey(hashes[i]))
		batch.Delete(refereeCreditKey(hashes[i]))
	}
	for hash, credit := range refereeCredits {
		hash := hash
		total, err := ctx.fetchRefereeCredit(&hash)
		if err != nil && !IsNotFoundError(err) {
			return err
		}
		creditBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(creditBytes, total+credit)
		batch.Put(refereeCreditKey(&hash), creditBytes)
	}
	if err := ctx.db.Write(batch, nil); err != nil {
		return convertNotFoundError(err)
	}

	for _, hash := range hashes {
		ctx.blockCache.Remove(*hash)
	}
	return nil
}

// FetchCheckpoint returns the recorded pruning-frontier block hash and its
// pivot-chain height. Returns ErrNotFound when no checkpoint has ever been
// recorded.
func (ctx *DatabaseContext) FetchCheckpoint() (*daghash.Hash, uint64, error) {
	value, err := ctx.db.Get(checkpointKey, nil)
	if err != nil {
		return nil, 0, convertNotFoundError(err)
	}
	hash, err := daghash.NewHash(value[:daghash.HashSize])
	if err != nil {
		return nil, 0, err
	}
	return hash, binary.BigEndian.Uint64(value[daghash.HashSize:]), nil
}

func (ctx *DatabaseContext) fetchRefereeCredit(hash *daghash.Hash) (uint64, error) {
	value, err := ctx.db.Get(refereeCreditKey(hash), nil)
	if err != nil {
		return 0, convertNotFoundError(err)
	}
	return binary.BigEndian.Uint64(value), nil
}

// ForEachRefereeCredit calls fn once per recorded referee credit. Iteration
// stops at the first error fn returns, which is then passed through.
func (ctx *DatabaseContext) ForEachRefereeCredit(fn func(hash *daghash.Hash, credit uint64) error) error {
	iterator := ctx.db.NewIterator(util.BytesPrefix(refereeCreditKeyPrefix), nil)
	defer iterator.Release()

	for iterator.Next() {
		hash, err := daghash.NewHash(iterator.Key()[len(refereeCreditKeyPrefix):])
		if err != nil {
			return err
		}
		if err := fn(hash, binary.BigEndian.Uint64(iterator.Value())); err != nil {
			return err
		}
	}
	return convertNotFoundError(iterator.Error())
}
