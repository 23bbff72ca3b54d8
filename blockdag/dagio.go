package blockdag

import (
	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/dbaccess"
	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

// This file handles the DAG's interaction with the block store: persisting
// accepted headers and replaying them on startup. Persistence is an append
// trace, pruned together with the in-memory state at checkpoints; restart
// rebuilds the full in-memory state by reprocessing the trace from its root,
// which is genesis or the latest recorded checkpoint.

// storeBlock persists an accepted block's header under its insertion
// sequence.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) storeBlock(node *blockNode, header *wire.BlockHeader) error {
	headerBytes, err := header.Bytes()
	if err != nil {
		return err
	}
	return dag.databaseContext.StoreBlock(node.sequence, &node.hash, headerBytes)
}

// restoreFromStore seats the trace root and replays every stored block
// through the regular processing path, in the order the blocks were
// originally accepted. Pivot resolution, epoch sealing and orchestrator
// commits all rerun, so after the replay the in-memory state matches the
// shape the persisted blocks imply. Execution state at or below a recorded
// checkpoint is the orchestrator's own durable concern and is not replayed.
func (dag *BlockDAG) restoreFromStore() error {
	dag.dagLock.Lock()
	defer dag.dagLock.Unlock()

	checkpointHash, checkpointHeight, err := dag.databaseContext.FetchCheckpoint()
	if err != nil && !dbaccess.IsNotFoundError(err) {
		return err
	}
	if err == nil {
		if err := dag.seatStoredCheckpoint(checkpointHash, checkpointHeight); err != nil {
			return err
		}
	} else {
		if err := dag.initGenesis(dag.Params.GenesisBlock); err != nil {
			return err
		}
	}

	restored := 0
	var maxStoredSequence uint64
	err = dag.databaseContext.ForEachBlock(func(sequence uint64, headerBytes []byte) error {
		header, err := wire.NewBlockHeaderFromBytes(headerBytes)
		if err != nil {
			return errors.Wrapf(err, "corrupt stored block at sequence %d", sequence)
		}
		blockHash := header.BlockHash()
		if sequence > maxStoredSequence {
			maxStoredSequence = sequence
		}
		if blockHash.IsEqual(&dag.root.hash) {
			// The trace root is already seated.
			return nil
		}

		// The genesis block is seeded from the network parameters, never
		// from the store. A stored genesis that differs from it means
		// the database belongs to another network.
		if header.IsGenesis() {
			if blockHash.IsEqual(dag.Params.GenesisHash) {
				return nil
			}
			return errors.Errorf("stored genesis block %s does not match the %s genesis %s",
				blockHash, dag.Params.Name, dag.Params.GenesisHash)
		}

		if _, err := dag.processBlockNoLock(header, BFWasStored); err != nil {
			var ruleErr RuleError
			if errors.As(err, &ruleErr) &&
				(ruleErr.ErrorCode == ErrUnknownParent || ruleErr.ErrorCode == ErrDuplicateBlock) {

				// Remnant of a store prune that did not complete; the
				// block belongs to evicted history.
				log.Warnf("Skipping stored block %s: %s", blockHash, ruleErr.Description)
				return nil
			}
			return errors.Wrapf(err, "failed replaying stored block %s", blockHash)
		}
		restored++
		return nil
	})
	if err != nil {
		return err
	}

	// Blocks whose persistence failed leave gaps in the stored sequence
	// numbers. Replay assigns dense sequences, so without realigning the
	// counter a future block could be stored under a sequence the trace
	// already uses.
	if maxStoredSequence+1 > dag.index.nextSequence {
		dag.index.nextSequence = maxStoredSequence + 1
	}

	if err := dag.applyStoredRefereeCredits(); err != nil {
		return err
	}

	if restored > 0 {
		log.Infof("Restored %d blocks from the block store", restored)
	}
	return nil
}

// applyStoredRefereeCredits reapplies the referee weight that blocks evicted
// by earlier checkpoints had credited to retained blocks. The citing blocks
// are gone from the trace, so the replay above rebuilt the retained subtree
// weights without these credits; once they are back, the pivot chain is
// re-resolved because heaviest-child decisions can depend on them.
//
// This function MUST be called with the DAG lock held (for writes).
func (dag *BlockDAG) applyStoredRefereeCredits() error {
	applied := false
	err := dag.databaseContext.ForEachRefereeCredit(func(hash *daghash.Hash, credit uint64) error {
		node, ok := dag.index.LookupNode(hash)
		if !ok {
			// Remnant of a store prune that did not complete.
			log.Warnf("Skipping a recorded referee credit for %s: the block is not in the restored DAG", hash)
			return nil
		}
		dag.weights.addWeight(node.treeHandle, credit)
		applied = true
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	removed, added := dag.pivotDiffFrom(dag.root)
	if _, err := dag.applyChainUpdates(removed, added); err != nil {
		return errors.Wrap(err, "failed re-resolving the pivot chain after reapplying referee credits")
	}
	return nil
}

// seatStoredCheckpoint makes the recorded checkpoint block the root of the
// restored history, exactly as pruning left it: no parent, no referee edges,
// and the pivot chain starting at its recorded height. Its epoch is sealed
// without recommitting, since everything at or below the checkpoint was
// committed durably before the checkpoint was accepted.
//
// This function MUST be called with the DAG lock held (for writes).
func (dag *BlockDAG) seatStoredCheckpoint(hash *daghash.Hash, height uint64) error {
	headerBytes, err := dag.databaseContext.FetchBlock(hash)
	if err != nil {
		return errors.Wrapf(err, "the recorded checkpoint block %s is missing from the store", hash)
	}
	header, err := wire.NewBlockHeaderFromBytes(headerBytes)
	if err != nil {
		return errors.Wrapf(err, "corrupt stored checkpoint block %s", hash)
	}

	root := newBlockNode(header, nil, nil)
	root.height = height
	root.treeHandle = dag.weights.newNode(root.weight)
	dag.index.AddNode(root)
	if err := dag.pastSets.addBlock(root); err != nil {
		return err
	}
	root.status = statusValid
	dag.root = root
	dag.blockCount = 1

	dag.pivotBase = height
	dag.pivotChain = []*blockNode{root}
	epoch, err := dag.buildEpoch(root)
	if err != nil {
		return err
	}
	epoch.markEpochAssigned()
	dag.epochs = []*Epoch{epoch}

	log.Infof("Restored pruning frontier %s at height %d", root, height)
	return nil
}
