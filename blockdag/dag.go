// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/dagconfig"
	"github.com/ghastnet/ghastd/dbaccess"
	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

// riskCacheSize is the number of (block, tip) confirmation-risk estimates
// kept memoized. Estimates are cheap to recompute, so the cache only needs to
// cover the blocks callers poll repeatedly while waiting for confirmation.
const riskCacheSize = 4096

// BlockDAG provides functions for working with the Tree-Graph of blocks:
// ingesting blocks, maintaining the heaviest-subtree pivot chain, sealing
// epochs for execution, estimating confirmation risk and advancing the
// pruning frontier.
//
// The caller-visible API of this struct is safe for concurrent access.
type BlockDAG struct {
	// Params identifies the network the DAG is associated with and the
	// checkpoint and pruning policy. It is set when the instance is
	// created and can't be changed afterwards.
	Params *dagconfig.Params

	// databaseContext is the best-effort persistence layer for accepted
	// block headers. May be nil for a memory-only DAG.
	databaseContext *dbaccess.DatabaseContext

	// orchestrator executes sealed epochs. May be nil, in which case
	// epochs carry a zero state root.
	orchestrator ExecutionOrchestrator

	// dagLock protects concurrent access to all the fields below. A
	// single lock keeps every query answer consistent with one DAG state.
	dagLock sync.RWMutex

	index    *blockIndex
	weights  *weightTree
	pastSets *pastSetTracker

	// root is the pruning-frontier block: the oldest retained block and
	// the root of the retained parent tree.
	root *blockNode

	// pivotChain holds the retained pivot-chain blocks; pivotChain[i] has
	// height pivotBase+i. epochs is kept index-aligned with it.
	pivotChain []*blockNode
	pivotBase  uint64
	epochs     []*Epoch

	// pruned records the hashes of blocks evicted by checkpoints, so
	// queries about discarded history stay deterministic.
	pruned map[daghash.Hash]struct{}

	riskCache  *lru.Cache
	reorgState reorgState
	blockCount uint64

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

// Config is a descriptor which specifies the blockDAG instance configuration.
type Config struct {
	// DAGParams identifies which network parameters the DAG is associated
	// with.
	//
	// This field is required.
	DAGParams *dagconfig.Params

	// Orchestrator receives sealed epochs for execution and rollback
	// signals on reorganization.
	//
	// This field can be nil if the caller does not execute epochs.
	Orchestrator ExecutionOrchestrator

	// DatabaseContext persists accepted block headers and replays them on
	// startup.
	//
	// This field can be nil for a memory-only DAG.
	DatabaseContext *dbaccess.DatabaseContext
}

// New returns a BlockDAG instance using the provided configuration details.
// The genesis block of the configured network is inserted and sealed as epoch
// zero, and any blocks found in the database context are replayed on top of
// it in their original acceptance order.
func New(config *Config) (*BlockDAG, error) {
	if config.DAGParams == nil {
		return nil, errors.New("blockdag.New DAG parameters nil")
	}
	params := config.DAGParams

	riskCache, err := lru.New(riskCacheSize)
	if err != nil {
		return nil, err
	}

	dag := &BlockDAG{
		Params:          params,
		databaseContext: config.DatabaseContext,
		orchestrator:    config.Orchestrator,
		index:           newBlockIndex(),
		weights:         newWeightTree(),
		pastSets:        newPastSetTracker(params.PruningWindow),
		pruned:          make(map[daghash.Hash]struct{}),
		riskCache:       riskCache,
	}

	if dag.databaseContext != nil {
		// The restore seats the trace root itself: genesis, or the
		// recorded checkpoint when the store has been pruned.
		if err := dag.restoreFromStore(); err != nil {
			return nil, err
		}
	} else {
		if err := dag.initGenesis(params.GenesisBlock); err != nil {
			return nil, err
		}
	}

	tip := dag.pivotChain[len(dag.pivotChain)-1]
	log.Infof("DAG state (height %d, tip %s, %d blocks)",
		tip.height, tip.hash, dag.blockCount)
	return dag, nil
}

// initGenesis seats the given genesis header as the initial root, pivot tip
// and epoch zero.
func (dag *BlockDAG) initGenesis(header *wire.BlockHeader) error {
	if !header.IsGenesis() {
		return errors.Errorf("genesis block of network %s has a parent", dag.Params.Name)
	}

	genesis := newBlockNode(header, nil, nil)
	genesis.treeHandle = dag.weights.newNode(genesis.weight)
	dag.index.AddNode(genesis)
	if err := dag.pastSets.addBlock(genesis); err != nil {
		return err
	}
	genesis.status = statusValid
	dag.root = genesis
	dag.blockCount = 1

	dag.pivotChain = []*blockNode{genesis}
	epoch, err := dag.buildEpoch(genesis)
	if err != nil {
		return err
	}
	if dag.orchestrator != nil {
		stateRoot, err := dag.orchestrator.CommitEpoch(epoch)
		if err != nil {
			return errors.Wrap(err, "failed committing the genesis epoch")
		}
		epoch.StateRoot = stateRoot
	}
	epoch.markEpochAssigned()
	dag.epochs = []*Epoch{epoch}
	return nil
}

// IsInDAG determines whether a block with the given hash exists in the DAG.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) IsInDAG(hash *daghash.Hash) bool {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return dag.index.HaveBlock(hash)
}

// WasPruned returns whether the given hash belonged to a block that a
// checkpoint has since evicted.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) WasPruned(hash *daghash.Hash) bool {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return dag.wasPruned(hash)
}

// BlockCount returns the number of blocks this instance has accepted,
// including blocks a checkpoint has since evicted.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) BlockCount() uint64 {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return dag.blockCount
}

// BlockByHash returns the header of the given retained block.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) BlockByHash(hash *daghash.Hash) (*wire.BlockHeader, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	node, err := dag.lookupRetained(hash)
	if err != nil {
		return nil, err
	}
	return node.Header(), nil
}

// Height returns the parent-tree height of the given block.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) Height(hash *daghash.Hash) (uint64, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	node, err := dag.lookupRetained(hash)
	if err != nil {
		return 0, err
	}
	return node.height, nil
}

// ChildrenOf returns the hashes of the given block's parent-tree children, in
// block acceptance order.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) ChildrenOf(hash *daghash.Hash) ([]*daghash.Hash, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	node, err := dag.lookupRetained(hash)
	if err != nil {
		return nil, err
	}
	// Children are appended at insertion time, so the slice is already in
	// acceptance order.
	return hashesOf(node.children), nil
}

// SubtreeWeight returns the total weight of the given block's parent-tree
// subtree, including referee credits received by any block in the subtree.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) SubtreeWeight(hash *daghash.Hash) (uint64, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	node, err := dag.lookupRetained(hash)
	if err != nil {
		return 0, err
	}
	return dag.weights.subtreeWeight(node.treeHandle), nil
}

// IsInPast returns whether block a is in the past of block b, that is,
// whether b transitively reaches a through parent and referee edges.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) IsInPast(a, b *daghash.Hash) (bool, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	nodeA, err := dag.lookupRetained(a)
	if err != nil {
		return false, err
	}
	nodeB, err := dag.lookupRetained(b)
	if err != nil {
		return false, err
	}
	return dag.pastSets.isInPast(nodeA, nodeB)
}

// AnticoneOf filters candidates down to the blocks in the given block's
// anticone: blocks neither in its past nor in its future.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) AnticoneOf(hash *daghash.Hash, candidates []*daghash.Hash) ([]*daghash.Hash, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	node, err := dag.lookupRetained(hash)
	if err != nil {
		return nil, err
	}
	candidateNodes := make([]*blockNode, 0, len(candidates))
	for _, candidateHash := range candidates {
		candidate, err := dag.lookupRetained(candidateHash)
		if err != nil {
			return nil, err
		}
		candidateNodes = append(candidateNodes, candidate)
	}
	anticone, err := dag.pastSets.anticone(node, candidateNodes)
	if err != nil {
		return nil, err
	}
	return hashesOf(anticone), nil
}

// PivotTipHash returns the hash of the current pivot-chain tip.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) PivotTipHash() *daghash.Hash {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	tip := dag.pivotChain[len(dag.pivotChain)-1]
	return &tip.hash
}

// ChainHeight returns the height of the current pivot-chain tip.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) ChainHeight() uint64 {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return dag.pivotChain[len(dag.pivotChain)-1].height
}

// PivotChainHashes returns the hashes of the retained pivot chain, frontier
// first, tip last.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) PivotChainHashes() []*daghash.Hash {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return hashesOf(dag.pivotChain)
}

// FrontierHash returns the hash of the pruning-frontier block, the oldest
// block the DAG retains.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) FrontierHash() *daghash.Hash {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return &dag.root.hash
}

// FrontierHeight returns the pivot-chain height of the pruning frontier.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) FrontierHeight() uint64 {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()
	return dag.pivotBase
}

// EpochAtHeight returns the sealed epoch anchored at the given pivot-chain
// height. Heights behind the pruning frontier fail with ErrOutOfWindow;
// heights above the current tip fail as unknown.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) EpochAtHeight(height uint64) (*Epoch, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	if height < dag.pivotBase {
		str := fmt.Sprintf("epoch at height %d is behind the pruning frontier at height %d",
			height, dag.pivotBase)
		return nil, ruleError(ErrOutOfWindow, str)
	}
	offset := height - dag.pivotBase
	if offset >= uint64(len(dag.epochs)) {
		return nil, errors.Errorf("no epoch is anchored at height %d; the chain height is %d",
			height, dag.pivotBase+uint64(len(dag.epochs))-1)
	}
	return dag.epochs[offset], nil
}

// EpochContaining reports which sealed epoch the given block belongs to. The
// returned boolean is false when the block has been accepted but is not yet
// covered by any pivot-chain block, in which case the epoch is nil.
//
// This function is safe for concurrent access.
func (dag *BlockDAG) EpochContaining(hash *daghash.Hash) (*Epoch, bool, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	node, err := dag.lookupRetained(hash)
	if err != nil {
		return nil, false, err
	}
	if !node.status.EpochAssigned() {
		return nil, false, nil
	}
	return dag.epochs[node.epochHeight-dag.pivotBase], true, nil
}

// AncestorIterator walks a block's parent chain toward the pruning frontier,
// one ancestor per Next call. It reads the DAG without locking: the parent
// links it follows are immutable for retained blocks, but the iterator must
// not be used across a checkpoint that could evict the remaining ancestors.
type AncestorIterator struct {
	node *blockNode
}

// Next advances to the next ancestor and reports whether one exists.
func (it *AncestorIterator) Next() bool {
	if it.node == nil {
		return false
	}
	it.node = it.node.parent
	return it.node != nil
}

// Hash returns the current ancestor's hash. Only valid after a Next call
// that returned true.
func (it *AncestorIterator) Hash() *daghash.Hash {
	return &it.node.hash
}

// Height returns the current ancestor's height. Only valid after a Next call
// that returned true.
func (it *AncestorIterator) Height() uint64 {
	return it.node.height
}

// AncestorsOf returns an iterator over the given block's parent-chain
// ancestors, nearest first, ending at the pruning frontier.
//
// This function is safe for concurrent access, but see AncestorIterator for
// the iterator's own guarantees.
func (dag *BlockDAG) AncestorsOf(hash *daghash.Hash) (*AncestorIterator, error) {
	dag.dagLock.RLock()
	defer dag.dagLock.RUnlock()

	node, err := dag.lookupRetained(hash)
	if err != nil {
		return nil, err
	}
	return &AncestorIterator{node: node}, nil
}

// lookupRetained resolves a hash to its retained node, distinguishing blocks
// the DAG never saw from blocks a checkpoint evicted.
//
// This function MUST be called with the DAG lock held (reads).
func (dag *BlockDAG) lookupRetained(hash *daghash.Hash) (*blockNode, error) {
	node, ok := dag.index.LookupNode(hash)
	if !ok {
		if dag.wasPruned(hash) {
			str := fmt.Sprintf("block %s is behind the pruning frontier", hash)
			return nil, ruleError(ErrOutOfWindow, str)
		}
		return nil, errors.Errorf("block %s is not in the DAG", hash)
	}
	return node, nil
}
