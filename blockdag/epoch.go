package blockdag

import (
	"container/heap"

	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/util/daghash"
)

// StateRoot is the opaque commitment returned by the execution orchestrator
// for a committed epoch. The consensus core never inspects its contents.
type StateRoot [32]byte

// Epoch is the ordered batch of blocks that become newly settled when one
// pivot block joins the pivot chain: every block in the past of the pivot
// that is not already settled by the previous pivot block, ordered
// topologically with hash tie-breaks, the pivot block last.
//
// An epoch is produced once, consumed once by execution orchestration, and is
// immutable afterwards except for the StateRoot attached on commit.
type Epoch struct {
	// PivotHash is the hash of the pivot block anchoring this epoch.
	PivotHash daghash.Hash

	// Height is the pivot block's position on the pivot chain.
	Height uint64

	// BlockHashes is the epoch's total order. The pivot block is always
	// the final element.
	BlockHashes []*daghash.Hash

	// StateRoot is the opaque execution commitment, set once the epoch
	// has been committed.
	StateRoot StateRoot

	// members holds the nodes behind BlockHashes for rollback handling.
	members []*blockNode
}

// buildEpoch constructs the epoch anchored at pivot. The previous pivot block
// is pivot's tree parent, since consecutive pivot-chain blocks are always
// parent and child.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) buildEpoch(pivot *blockNode) (*Epoch, error) {
	var members []*blockNode
	if pivot.parent == nil {
		members = []*blockNode{pivot}
	} else {
		settled, err := dag.pastSets.pastDifference(pivot, pivot.parent)
		if err != nil {
			return nil, errors.Wrapf(err, "failed computing the epoch set of %s", pivot)
		}
		members = append(settled, pivot)
	}

	ordered := orderEpochBlocks(members)
	hashes := make([]*daghash.Hash, len(ordered))
	for i, node := range ordered {
		node := node
		hashes[i] = &node.hash
	}

	return &Epoch{
		PivotHash:   pivot.hash,
		Height:      pivot.height,
		BlockHashes: hashes,
		members:     ordered,
	}, nil
}

// orderEpochBlocks produces the deterministic total order of an epoch set: a
// Kahn topological sort over the parent and referee edges restricted to the
// set, emitting ready blocks smallest-hash first. The order is a pure
// function of the DAG's shape, so identical DAG state yields the identical
// sequence on every node.
func orderEpochBlocks(members []*blockNode) []*blockNode {
	inSet := newBlockSet()
	for _, member := range members {
		inSet.add(member)
	}

	indegree := make(map[*blockNode]int, len(members))
	for _, member := range members {
		degree := 0
		if member.parent != nil && inSet.contains(member.parent) {
			degree++
		}
		for _, referee := range member.referees {
			if inSet.contains(referee) {
				degree++
			}
		}
		indegree[member] = degree
	}

	ready := newHashHeap()
	for _, member := range members {
		if indegree[member] == 0 {
			ready.push(member)
		}
	}

	ordered := make([]*blockNode, 0, len(members))
	for ready.Len() > 0 {
		node := ready.pop()
		ordered = append(ordered, node)

		for _, child := range node.children {
			if !inSet.contains(child) {
				continue
			}
			indegree[child]--
			if indegree[child] == 0 {
				ready.push(child)
			}
		}
		for _, referrer := range node.referrers {
			if !inSet.contains(referrer) {
				continue
			}
			indegree[referrer]--
			if indegree[referrer] == 0 {
				ready.push(referrer)
			}
		}
	}
	return ordered
}

// markEpochAssigned flags every member of the epoch as settled at the epoch's
// height.
func (e *Epoch) markEpochAssigned() {
	for _, member := range e.members {
		member.status |= statusEpochAssigned
		member.epochHeight = e.Height
	}
}

// clearEpochAssigned returns every member of the epoch to the pending state.
// Used when a reorganization removes the anchoring pivot block.
func (e *Epoch) clearEpochAssigned() {
	for _, member := range e.members {
		member.status &^= statusEpochAssigned
		member.epochHeight = 0
	}
}

// hashHeap is a min-heap of block nodes keyed by block hash. It backs the
// deterministic frontier of the epoch topological sort.
type hashHeap struct {
	nodes []*blockNode
}

func newHashHeap() *hashHeap {
	h := &hashHeap{}
	heap.Init(h)
	return h
}

func (h *hashHeap) Len() int { return len(h.nodes) }

func (h *hashHeap) Less(i, j int) bool {
	return daghash.Less(&h.nodes[i].hash, &h.nodes[j].hash)
}

func (h *hashHeap) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
}

func (h *hashHeap) Push(x interface{}) {
	h.nodes = append(h.nodes, x.(*blockNode))
}

func (h *hashHeap) Pop() interface{} {
	oldNodes := h.nodes
	popped := oldNodes[len(oldNodes)-1]
	h.nodes = oldNodes[:len(oldNodes)-1]
	return popped
}

func (h *hashHeap) push(node *blockNode) {
	heap.Push(h, node)
}

func (h *hashHeap) pop() *blockNode {
	return heap.Pop(h).(*blockNode)
}
