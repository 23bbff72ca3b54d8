package blockdag

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/util/daghash"
)

// This file implements the checkpoint/pruner: accepting a stabilized
// pivot-chain block as the new pruning frontier and releasing every
// structure's state strictly behind it.

// AcceptCheckpoint advances the pruning frontier to the given pivot-chain
// block. The candidate must be on the pivot chain, at least
// Params.CheckpointDepth below the tip, and confirmed under
// Params.CheckpointRiskThreshold; otherwise the call fails with
// ErrCheckpointTooShallow and no state changes.
//
// A candidate at or behind the current frontier is redundant and returns
// success without effect. Once a checkpoint is accepted it never fails:
// eviction is completed inline but is not required for the correctness of
// queries about retained blocks.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) AcceptCheckpoint(blockHash *daghash.Hash) error {
	dag.dagLock.Lock()
	defer dag.dagLock.Unlock()

	if err := dag.checkFaulted(); err != nil {
		return err
	}

	node, ok := dag.index.LookupNode(blockHash)
	if !ok {
		if dag.wasPruned(blockHash) {
			// The frontier has already moved past this candidate.
			return nil
		}
		return errors.Errorf("checkpoint candidate %s is not in the DAG", blockHash)
	}
	if node == dag.root {
		return nil
	}

	if !dag.isChainNode(node) {
		str := fmt.Sprintf("checkpoint candidate %s is not on the pivot chain", node)
		return ruleError(ErrCheckpointTooShallow, str)
	}

	tip := dag.pivotChain[len(dag.pivotChain)-1]
	if node.height+dag.Params.CheckpointDepth > tip.height {
		str := fmt.Sprintf("checkpoint candidate %s is only %d blocks below the tip, need %d",
			node, tip.height-node.height, dag.Params.CheckpointDepth)
		return ruleError(ErrCheckpointTooShallow, str)
	}

	risk, err := dag.confirmationRisk(blockHash)
	if err != nil {
		return err
	}
	if risk > dag.Params.CheckpointRiskThreshold {
		str := fmt.Sprintf("checkpoint candidate %s carries confirmation risk %g, above the %g bound",
			node, risk, dag.Params.CheckpointRiskThreshold)
		return ruleError(ErrCheckpointTooShallow, str)
	}

	dag.pruneBehind(node)
	log.Infof("Advanced pruning frontier to %s; %d blocks retained", node, dag.index.BlockCount())
	return nil
}

// pruneBehind makes checkpoint the root of the retained history and releases
// all state of blocks outside its parent-tree subtree: their index entries,
// weight-tree arena slots and past-set bitvectors. The bit-vector index space
// is compacted in the same step.
//
// This function MUST be called with the DAG lock held (for writes).
func (dag *BlockDAG) pruneBehind(checkpoint *blockNode) {
	// Collect the retained subtree. Everything else, the checkpoint's past
	// and any stale side branches, is evicted.
	retained := newBlockSet()
	queue := []*blockNode{checkpoint}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		retained.add(current)
		queue = append(queue, current.children...)
	}

	// Detach the checkpoint from the evicted world before freeing it.
	dag.weights.cutFromParent(checkpoint.treeHandle)
	var evictedSequences []uint64
	var evictedHashes []*daghash.Hash
	refereeCredits := make(map[daghash.Hash]uint64)
	for _, node := range dag.index.orderedNodes() {
		if retained.contains(node) {
			continue
		}
		node := node
		// Credits an evicted block gave to retained referees stay inside
		// the retained subtree weights, but the citing block leaves the
		// store. Record the totals so restart replay rebuilds the same
		// weights.
		for _, referee := range node.referees {
			if retained.contains(referee) {
				refereeCredits[referee.hash] += node.weight
			}
		}
		dag.weights.freeNode(node.treeHandle)
		dag.pruned[node.hash] = struct{}{}
		evictedSequences = append(evictedSequences, node.sequence)
		evictedHashes = append(evictedHashes, &node.hash)
	}

	checkpoint.parent = nil
	dag.root = checkpoint

	// Retained blocks may cite referees that were just evicted; drop the
	// dangling back-references along with the edges themselves.
	dag.index.evictExcept(retained)
	for _, node := range dag.index.orderedNodes() {
		node.referees = filterInSet(node.referees, retained)
		node.referrers = filterInSet(node.referrers, retained)
	}

	dag.pastSets.compact(dag.index.orderedNodes())

	keep := checkpoint.height - dag.pivotBase
	dag.pivotChain = dag.pivotChain[keep:]
	dag.epochs = dag.epochs[keep:]
	dag.pivotBase = checkpoint.height

	if dag.databaseContext != nil {
		err := dag.databaseContext.PruneBlocks(evictedSequences, evictedHashes,
			&checkpoint.hash, checkpoint.height, refereeCredits)
		if err != nil {
			log.Errorf("Failed pruning the block store behind %s: %s", checkpoint, err)
		}
	}
}

// wasPruned returns whether the hash belonged to a block that a checkpoint
// has evicted. The pruned set is the retained header trace of discarded
// history; it answers frontier queries deterministically.
//
// This function MUST be called with the DAG lock held (reads).
func (dag *BlockDAG) wasPruned(blockHash *daghash.Hash) bool {
	_, ok := dag.pruned[*blockHash]
	return ok
}

func filterInSet(nodes []*blockNode, retained blockSet) []*blockNode {
	filtered := nodes[:0]
	for _, node := range nodes {
		if retained.contains(node) {
			filtered = append(filtered, node)
		}
	}
	return filtered
}
