package blockdag

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/util/daghash"
)

// ExecutionOrchestrator is the storage/state collaborator that executes
// epochs. The consensus core hands it epoch-ordered block lists and treats
// the returned state roots as opaque values; it never inspects state
// internals.
//
// Implementations must not call back into the BlockDAG from within these
// methods: they run while the DAG lock is held for writes.
type ExecutionOrchestrator interface {
	// CommitEpoch executes the epoch's blocks in their given order and
	// returns the resulting state root.
	CommitEpoch(epoch *Epoch) (StateRoot, error)

	// RollbackTo undoes every committed epoch anchored above the given
	// pivot-chain height.
	RollbackTo(height uint64) error
}

// reorgState tracks whether a pivot-chain reorganization is in flight.
// A replay that fails after its rollback signal was emitted leaves the
// execution state out of step with the DAG; that latches reorgStateFaulted,
// and a faulted DAG refuses all further mutation.
type reorgState int

const (
	reorgStateStable reorgState = iota
	reorgStateActive
	reorgStateFaulted
)

// checkFaulted returns an error when an earlier epoch replay did not run to
// completion. Every mutating entry point consults it first.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) checkFaulted() error {
	if dag.reorgState == reorgStateFaulted {
		return errors.New("the DAG is faulted: an earlier epoch replay did not run to completion")
	}
	return nil
}

// ChainUpdates represents the updates made to the pivot chain after a block
// has been added to the DAG.
type ChainUpdates struct {
	RemovedChainBlockHashes []*daghash.Hash
	AddedChainBlockHashes   []*daghash.Hash
}

// applyChainUpdates commits a resolved pivot change: it rolls back the
// epochs anchored at removed chain blocks, extends the recorded pivot chain
// with the added blocks, and builds and commits one epoch per added block.
//
// Replay is deliberately not cancellable: once a rollback has been emitted
// the replay must run to completion, otherwise epoch state would be left
// inconsistent. A failure partway through therefore latches
// reorgStateFaulted, after which the DAG rejects every further mutation.
//
// This function MUST be called with the DAG lock held (for writes).
func (dag *BlockDAG) applyChainUpdates(removed, added []*blockNode) (*ChainUpdates, error) {
	updates := &ChainUpdates{
		RemovedChainBlockHashes: hashesOf(removed),
		AddedChainBlockHashes:   hashesOf(added),
	}
	if len(removed) == 0 && len(added) == 0 {
		return updates, nil
	}

	if len(removed) > 0 {
		reorgHeight := removed[0].height
		if reorgHeight <= dag.pivotBase {
			dag.reorgState = reorgStateFaulted
			str := fmt.Sprintf("pivot chain reorganization at height %d would reach "+
				"behind the pruning frontier at height %d", reorgHeight, dag.pivotBase)
			return nil, ruleError(ErrIrrecoverableReorg, str)
		}

		dag.reorgState = reorgStateActive
		log.Warnf("Pivot chain reorganization at height %d: removing %d blocks, adding %d",
			reorgHeight, len(removed), len(added))

		if dag.orchestrator != nil {
			if err := dag.orchestrator.RollbackTo(reorgHeight - 1); err != nil {
				dag.reorgState = reorgStateFaulted
				return nil, errors.Wrapf(err,
					"execution rollback to height %d failed", reorgHeight-1)
			}
		}

		keep := reorgHeight - dag.pivotBase
		for i := uint64(len(dag.epochs)); i > keep; i-- {
			dag.epochs[i-1].clearEpochAssigned()
		}
		dag.pivotChain = dag.pivotChain[:keep]
		dag.epochs = dag.epochs[:keep]
	}

	for _, node := range added {
		epoch, err := dag.buildEpoch(node)
		if err != nil {
			dag.reorgState = reorgStateFaulted
			return nil, err
		}
		if dag.orchestrator != nil {
			stateRoot, err := dag.orchestrator.CommitEpoch(epoch)
			if err != nil {
				dag.reorgState = reorgStateFaulted
				return nil, errors.Wrapf(err, "failed committing epoch %d", epoch.Height)
			}
			epoch.StateRoot = stateRoot
		}
		epoch.markEpochAssigned()
		dag.pivotChain = append(dag.pivotChain, node)
		dag.epochs = append(dag.epochs, epoch)
	}

	dag.reorgState = reorgStateStable
	return updates, nil
}

func hashesOf(nodes []*blockNode) []*daghash.Hash {
	if len(nodes) == 0 {
		return nil
	}
	hashes := make([]*daghash.Hash, len(nodes))
	for i, node := range nodes {
		node := node
		hashes[i] = &node.hash
	}
	return hashes
}
