package blockdag

import (
	"github.com/ghastnet/ghastd/util/daghash"
)

// blockIndex provides lookup from block hash to block node and assigns the
// monotonically increasing insertion sequence numbers.
//
// All access MUST be protected by the DAG lock.
type blockIndex struct {
	index map[daghash.Hash]*blockNode

	// ordered holds the in-window nodes in insertion order. The slice is
	// rebuilt when a checkpoint evicts pruned history.
	ordered []*blockNode

	nextSequence uint64
}

// newBlockIndex returns a new empty instance of a block index.
func newBlockIndex() *blockIndex {
	return &blockIndex{
		index: make(map[daghash.Hash]*blockNode),
	}
}

// HaveBlock returns whether or not the block index contains the provided
// hash.
func (bi *blockIndex) HaveBlock(hash *daghash.Hash) bool {
	_, ok := bi.index[*hash]
	return ok
}

// LookupNode returns the block node identified by the provided hash. It will
// return nil if there is no entry for the hash.
func (bi *blockIndex) LookupNode(hash *daghash.Hash) (*blockNode, bool) {
	node, ok := bi.index[*hash]
	return node, ok
}

// AddNode adds the provided node to the block index, assigning it the next
// insertion sequence number.
func (bi *blockIndex) AddNode(node *blockNode) {
	node.sequence = bi.nextSequence
	bi.nextSequence++
	bi.index[node.hash] = node
	bi.ordered = append(bi.ordered, node)
}

// BlockCount returns the number of in-window blocks.
func (bi *blockIndex) BlockCount() uint64 {
	return uint64(len(bi.ordered))
}

// orderedNodes returns the in-window nodes in insertion order. The returned
// slice must not be mutated.
func (bi *blockIndex) orderedNodes() []*blockNode {
	return bi.ordered
}

// evictExcept removes every node not contained in retained and rebuilds the
// insertion-order slice. Sequence numbers keep their original values so that
// relative arrival order survives pruning.
func (bi *blockIndex) evictExcept(retained blockSet) {
	kept := make([]*blockNode, 0, len(retained))
	for _, node := range bi.ordered {
		if retained.contains(node) {
			kept = append(kept, node)
			continue
		}
		delete(bi.index, node.hash)
	}
	bi.ordered = kept
}
