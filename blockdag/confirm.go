package blockdag

import (
	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/util/daghash"
)

// This file implements the confirmation estimator: a pure read over the
// weighted tree that scores how likely a pivot block is to be displaced by a
// competing subtree. The risk shrinks monotonically as the block's subtree
// lead over its heaviest competitor grows and as more pivot blocks accumulate
// above it.

// riskCacheKey memoizes risk per (block, tip) pair: the estimate is a pure
// function of the tree state, which only changes when the tip does.
type riskCacheKey struct {
	block daghash.Hash
	tip   daghash.Hash
}

// ConfirmationRisk returns the estimated risk, in [0, 1], that the given
// block's pivot-chain membership is reverted. Blocks that are not currently
// on the pivot chain report a risk of 1. Blocks at or behind the pruning
// frontier are immutable and report 0.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) ConfirmationRisk(blockHash *daghash.Hash) (float64, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return dag.confirmationRisk(blockHash)
}

// This function MUST be called with the DAG lock held (reads).
func (dag *BlockDAG) confirmationRisk(blockHash *daghash.Hash) (float64, error) {
	node, ok := dag.index.LookupNode(blockHash)
	if !ok {
		if dag.wasPruned(blockHash) {
			return 0, nil
		}
		return 0, errors.Errorf("block %s is not in the DAG", blockHash)
	}

	if node == dag.root {
		return 0, nil
	}
	if !dag.isChainNode(node) {
		return 1, nil
	}

	tip := dag.pivotChain[len(dag.pivotChain)-1]
	cacheKey := riskCacheKey{block: *blockHash, tip: tip.hash}
	if cached, ok := dag.riskCache.Get(cacheKey); ok {
		return cached.(float64), nil
	}

	risk := dag.estimateRisk(node, tip)
	dag.riskCache.Add(cacheKey, risk)
	return risk, nil
}

// estimateRisk scores node, which must be a non-root pivot-chain block, as
// competing/(competing+lead+depth) with everything shifted by one so an
// uncontested fresh tip still carries nonzero risk:
//
//	competing: subtree weight of the heaviest sibling branch at node's fork
//	lead:      node's subtree weight advantage over that branch
//	depth:     pivot blocks accumulated above node
//
// Both lead and depth only grow while node stays on the pivot chain, so the
// estimate decreases monotonically as the chain advances.
func (dag *BlockDAG) estimateRisk(node, tip *blockNode) float64 {
	nodeWeight := dag.weights.subtreeWeight(node.treeHandle)

	var competing uint64
	for _, sibling := range node.parent.children {
		if sibling == node {
			continue
		}
		if siblingWeight := dag.weights.subtreeWeight(sibling.treeHandle); siblingWeight > competing {
			competing = siblingWeight
		}
	}

	var lead uint64
	if nodeWeight > competing {
		lead = nodeWeight - competing
	}
	depth := tip.height - node.height

	return float64(competing+1) / float64(competing+1+lead+depth)
}

// IsConfirmed returns whether the block's confirmation risk is at or below
// the given threshold.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) IsConfirmed(blockHash *daghash.Hash, riskThreshold float64) (bool, error) {
	risk, err := dag.ConfirmationRisk(blockHash)
	if err != nil {
		return false, err
	}
	return risk <= riskThreshold, nil
}
