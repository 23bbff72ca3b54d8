package blockdag

import (
	"github.com/ghastnet/ghastd/util/daghash"
)

// This file implements the GHAST pivot rule: starting at the root, the
// canonical chain repeatedly descends into the child with the heaviest
// subtree. The rule is a pure function of the DAG's final shape, so every
// honest node converges on the same pivot chain regardless of block arrival
// order.

// heaviestChild returns the child of node whose subtree weight is greatest,
// or nil when node has no children. Weight ties break toward the smaller
// block hash so that the choice is DAG-intrinsic and reproducible across
// independently-arriving nodes; local insertion order never decides.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) heaviestChild(node *blockNode) *blockNode {
	var best *blockNode
	var bestWeight uint64
	for _, child := range node.children {
		childWeight := dag.weights.subtreeWeight(child.treeHandle)
		if best == nil || childWeight > bestWeight ||
			(childWeight == bestWeight && daghash.Less(&child.hash, &best.hash)) {

			best = child
			bestWeight = childWeight
		}
	}
	return best
}

// pivotWalkFrom follows heaviestChild from start until a leaf and returns the
// blocks strictly below start in pivot order.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) pivotWalkFrom(start *blockNode) []*blockNode {
	var path []*blockNode
	for current := dag.heaviestChild(start); current != nil; current = dag.heaviestChild(current) {
		path = append(path, current)
	}
	return path
}

// isChainNode returns whether node is on the currently recorded pivot chain.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) isChainNode(node *blockNode) bool {
	if node.height < dag.pivotBase {
		return false
	}
	idx := node.height - dag.pivotBase
	return idx < uint64(len(dag.pivotChain)) && dag.pivotChain[idx] == node
}

// resolvePivotChange compares the recorded pivot chain against the GHAST rule
// after newNode's weight has been propagated, and returns the chain suffixes
// that must be removed and added.
//
// Weight was inserted at newNode and at each of its referees, and it only
// reaches the parent-chain ancestors of those insertion points. Above the
// shallowest recorded chain ancestor of any insertion point, every insertion
// point sits inside the chain child's subtree, so the added weight can only
// strengthen the recorded choice there; the walk restarts at that ancestor
// and recomputes every decision below it.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) resolvePivotChange(newNode *blockNode) (removed, added []*blockNode) {
	fork := dag.deepestChainAncestor(newNode)
	for _, referee := range newNode.referees {
		refereeFork := dag.deepestChainAncestor(referee)
		if refereeFork.height < fork.height {
			fork = refereeFork
		}
	}

	return dag.pivotDiffFrom(fork)
}

// pivotDiffFrom recomputes the GHAST walk below the given pivot-chain block
// and diffs it against the recorded chain, returning the suffixes to remove
// and add.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) pivotDiffFrom(fork *blockNode) (removed, added []*blockNode) {
	newPath := dag.pivotWalkFrom(fork)
	oldPath := dag.pivotChain[fork.height-dag.pivotBase+1:]

	common := 0
	for common < len(oldPath) && common < len(newPath) && oldPath[common] == newPath[common] {
		common++
	}
	return oldPath[common:], newPath[common:]
}

// deepestChainAncestor walks parent edges from node until it reaches a block
// on the recorded pivot chain. The retained root is always a chain node, so
// the walk terminates.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) deepestChainAncestor(node *blockNode) *blockNode {
	for !dag.isChainNode(node) {
		node = node.parent
	}
	return node
}
