package blockdag

import (
	"strings"

	"github.com/ghastnet/ghastd/util/daghash"
)

// blockSet implements a basic unsorted set of blocks.
type blockSet map[daghash.Hash]*blockNode

// newBlockSet creates a new, empty blockSet.
func newBlockSet() blockSet {
	return map[daghash.Hash]*blockNode{}
}

// add adds a block to this blockSet.
func (bs blockSet) add(node *blockNode) {
	bs[node.hash] = node
}

// contains returns true iff this set contains node.
func (bs blockSet) contains(node *blockNode) bool {
	_, ok := bs[node.hash]
	return ok
}

func (bs blockSet) String() string {
	ids := make([]string, 0, len(bs))
	for hash := range bs {
		ids = append(ids, hash.String())
	}
	return strings.Join(ids, ",")
}
