package blockdag

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

// BehaviorFlags is a bitmask defining tweaks to the normal behavior when
// performing DAG processing and structural validation.
type BehaviorFlags uint32

const (
	// BFWasStored may be set to indicate the block is being replayed from
	// the local block store. Referee citations into history the store has
	// already pruned are dropped instead of rejected, reproducing the
	// state the pruning left behind.
	BFWasStored BehaviorFlags = 1 << iota

	// BFNone is a convenience value to specifically indicate no flags.
	BFNone BehaviorFlags = 0
)

// ProcessBlock is the main workhorse for handling insertion of new blocks
// into the Tree-Graph. It rejects duplicate and structurally invalid blocks,
// links accepted blocks into the parent tree and the past-set tracker,
// propagates weight, and resolves any resulting pivot-chain change.
//
// Structural rejections (unknown parent or referee, duplicate, cyclic
// reference) leave the DAG completely untouched: validation precedes all
// mutation.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) ProcessBlock(header *wire.BlockHeader) (*ChainUpdates, error) {
	dag.dagLock.Lock()
	defer dag.dagLock.Unlock()
	return dag.processBlockNoLock(header, BFNone)
}

func (dag *BlockDAG) processBlockNoLock(header *wire.BlockHeader, flags BehaviorFlags) (*ChainUpdates, error) {
	blockHash := header.BlockHash()
	log.Debugf("Processing block %s", blockHash)

	if err := dag.checkFaulted(); err != nil {
		return nil, err
	}

	parent, referees, err := dag.validateBlockStructure(header, &blockHash, flags)
	if err != nil {
		return nil, err
	}

	// The block has passed all checks: from here on every step must
	// succeed, since failing halfway would leave the aggregates
	// inconsistent.
	node := newBlockNode(header, parent, referees)
	node.treeHandle = dag.weights.newNode(node.weight)
	dag.index.AddNode(node)
	node.updateParentsChildren()

	dag.weights.link(node.treeHandle, parent.treeHandle)
	for _, referee := range referees {
		dag.weights.addWeight(referee.treeHandle, node.weight)
	}

	if err := dag.pastSets.addBlock(node); err != nil {
		// The window was bounds-checked during validation, so a
		// failure here means the internal structures disagree; adding
		// more blocks on top of that state would corrupt the DAG.
		panic(err)
	}

	node.status = statusValid
	dag.blockCount++

	removed, added := dag.resolvePivotChange(node)
	chainUpdates, err := dag.applyChainUpdates(removed, added)
	if err != nil {
		return nil, err
	}

	if flags&BFWasStored == 0 && dag.databaseContext != nil {
		// Persistence is dispatched after the in-memory state commits
		// and is not load-bearing for this call: restart replay only
		// needs the blocks that did make it to disk.
		if err := dag.storeBlock(node, header); err != nil {
			log.Errorf("Failed persisting block %s: %s", blockHash, err)
		}
	}

	dag.notifyBlockAccepted(node, chainUpdates, len(added))

	log.Debugf("Accepted block %s at height %d", blockHash, node.height)
	return chainUpdates, nil
}

// validateBlockStructure performs every structural check on the header and
// resolves its parent and referees. No DAG state is mutated.
//
// This function MUST be called with the DAG lock held.
func (dag *BlockDAG) validateBlockStructure(header *wire.BlockHeader,
	blockHash *daghash.Hash, flags BehaviorFlags) (*blockNode, []*blockNode, error) {

	if dag.index.HaveBlock(blockHash) || dag.wasPruned(blockHash) {
		str := fmt.Sprintf("already have block %s", blockHash)
		return nil, nil, ruleError(ErrDuplicateBlock, str)
	}

	if len(header.RefereeHashes) > wire.MaxRefereesPerBlock {
		return nil, nil, errors.Errorf("block %s names %d referees, more than the %d bound",
			blockHash, len(header.RefereeHashes), wire.MaxRefereesPerBlock)
	}

	if dag.index.BlockCount() >= dag.Params.PruningWindow {
		str := fmt.Sprintf("pruning window of %d blocks is full; "+
			"a checkpoint must advance the frontier before more blocks can be ingested",
			dag.Params.PruningWindow)
		return nil, nil, ruleError(ErrOutOfWindow, str)
	}

	parent, ok := dag.index.LookupNode(&header.ParentHash)
	if !ok {
		str := fmt.Sprintf("parent block %s is unknown", header.ParentHash)
		if dag.wasPruned(&header.ParentHash) {
			str = fmt.Sprintf("parent block %s is behind the pruning frontier", header.ParentHash)
		}
		return nil, nil, ruleError(ErrUnknownParent, str)
	}

	referees := make([]*blockNode, 0, len(header.RefereeHashes))
	seen := make(map[daghash.Hash]struct{}, len(header.RefereeHashes))
	for i := range header.RefereeHashes {
		refereeHash := &header.RefereeHashes[i]
		if _, dup := seen[*refereeHash]; dup {
			str := fmt.Sprintf("referee block %s is listed twice", refereeHash)
			return nil, nil, ruleError(ErrCyclicReference, str)
		}
		seen[*refereeHash] = struct{}{}

		referee, ok := dag.index.LookupNode(refereeHash)
		if !ok {
			if flags&BFWasStored != 0 {
				// The citation points behind the store's pruning
				// frontier. Its weight credit was finalized before the
				// eviction, so dropping it reproduces the pruned state.
				continue
			}
			str := fmt.Sprintf("referee block %s is unknown", refereeHash)
			if dag.wasPruned(refereeHash) {
				str = fmt.Sprintf("referee block %s is behind the pruning frontier", refereeHash)
			}
			return nil, nil, ruleError(ErrUnknownReferee, str)
		}

		// A referee reachable through the parent chain would make the
		// citation redundant at best and, in the general exchange of
		// blocks between nodes, lets reference cycles masquerade as
		// weight. Note that parent itself is such an ancestor.
		if parent.hasAncestorByParentChain(referee) {
			str := fmt.Sprintf("referee block %s is an ancestor of block %s through its parent chain",
				refereeHash, blockHash)
			return nil, nil, ruleError(ErrCyclicReference, str)
		}

		referees = append(referees, referee)
	}

	return parent, referees, nil
}
