// Copyright (c) 2015-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"fmt"

	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

// blockStatus is a bit field representing the state of the block.
type blockStatus byte

const (
	// statusValid indicates that the block passed all structural
	// validation and is part of the live DAG.
	statusValid blockStatus = 1 << iota

	// statusEpochAssigned indicates that the block has been ordered into
	// an epoch anchored at some pivot-chain block. Blocks without this
	// flag are pending: their pivot ancestor has not stabilized yet.
	statusEpochAssigned

	// statusNone indicates that the block has no status flags set.
	//
	// NOTE: This must be defined last in order to avoid influencing iota.
	statusNone blockStatus = 0
)

// EpochAssigned returns whether the block has been ordered into an epoch.
func (status blockStatus) EpochAssigned() bool {
	return status&statusEpochAssigned != 0
}

// blockNode represents a block within the Tree-Graph. The parent pointer
// spans the tree used for pivot selection; referee pointers carry weight and
// past-set information only.
type blockNode struct {
	// parent is the unique tree parent of this node. It is nil only for
	// the root of the retained history (genesis, or the latest
	// checkpoint after pruning).
	parent *blockNode

	// referees are the non-parent blocks this node cites, in header
	// order.
	referees []*blockNode

	// children are all blocks that name this node as their parent,
	// ordered by insertion sequence. This is a derived back-reference;
	// the parent edge owns the relationship.
	children []*blockNode

	// referrers are all blocks that cite this node as a referee, ordered
	// by insertion sequence. Derived back-reference, lookup only.
	referrers []*blockNode

	// hash is the double sha256 of the block header.
	hash daghash.Hash

	// parentHash and refereeHashes preserve the header's declared edges.
	// Unlike the pointer edges above they survive pruning, so the header
	// can always be reconstructed hash-faithfully.
	parentHash    daghash.Hash
	refereeHashes []daghash.Hash

	// version is the block version declared in the header.
	version int32

	// nonce is the header nonce.
	nonce uint64

	// weight is the declared difficulty-equivalent contribution.
	weight uint64

	// height is the position in the parent tree: genesis is 0.
	height uint64

	// sequence is the monotonically assigned insertion counter. It is
	// local to this node's arrival order and is used only for internal
	// bookkeeping (bit indices, ordered iteration). Externally observable
	// ordering decisions break ties by hash instead.
	sequence uint64

	// treeHandle is this node's slot in the weight tree arena.
	treeHandle int32

	// timestamp is the declared creation time from the header.
	timestamp int64

	// epochHeight is the pivot-chain height of the epoch this block was
	// ordered into. Only meaningful when status has statusEpochAssigned.
	epochHeight uint64

	// status is a bitfield representing the state of the block.
	status blockStatus
}

// newBlockNode returns a new block node for the given block header and parent
// node. This function is NOT safe for concurrent access.
func newBlockNode(header *wire.BlockHeader, parent *blockNode, referees []*blockNode) *blockNode {
	node := &blockNode{
		parent:        parent,
		referees:      referees,
		hash:          header.BlockHash(),
		parentHash:    header.ParentHash,
		refereeHashes: append([]daghash.Hash(nil), header.RefereeHashes...),
		version:       header.Version,
		nonce:         header.Nonce,
		weight:        header.Weight,
		timestamp:     header.Timestamp,
		status:        statusNone,
	}
	if parent != nil {
		node.height = parent.height + 1
	}
	return node
}

// Header constructs a block header from the node. The result hashes back to
// the node's hash even after pruning has cut the node's pointer edges.
func (node *blockNode) Header() *wire.BlockHeader {
	return &wire.BlockHeader{
		Version:       node.version,
		ParentHash:    node.parentHash,
		RefereeHashes: append([]daghash.Hash(nil), node.refereeHashes...),
		Weight:        node.weight,
		Nonce:         node.nonce,
		Timestamp:     node.timestamp,
	}
}

// updateParentsChildren registers this node in its parent's children list and
// in every referee's referrers list. Must run exactly once, after the node
// received its insertion sequence.
func (node *blockNode) updateParentsChildren() {
	if node.parent != nil {
		node.parent.children = append(node.parent.children, node)
	}
	for _, referee := range node.referees {
		referee.referrers = append(referee.referrers, node)
	}
}

// Ancestor returns the ancestor block node at the provided height by walking
// parent edges backwards from this node. The returned node will be nil when a
// height is requested that is greater than the height of the passed node.
func (node *blockNode) Ancestor(height uint64) *blockNode {
	if height > node.height {
		return nil
	}

	n := node
	for n != nil && n.height != height {
		n = n.parent
	}
	return n
}

// hasAncestorByParentChain returns whether candidate is reachable from this
// node through parent edges alone.
func (node *blockNode) hasAncestorByParentChain(candidate *blockNode) bool {
	return node.Ancestor(candidate.height) == candidate
}

// String returns a string that contains the block hash and height.
func (node *blockNode) String() string {
	return fmt.Sprintf("%s (%d)", node.hash, node.height)
}
