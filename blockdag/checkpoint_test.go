package blockdag

import (
	"strings"
	"testing"

	"github.com/ghastnet/ghastd/util/daghash"
)

// buildChain extends the pivot chain with count blocks of the given weight and
// returns their hashes, tip last.
func buildChain(t *testing.T, dag *BlockDAG, parent *daghash.Hash, count int, startNonce uint64) []*daghash.Hash {
	t.Helper()
	hashes := make([]*daghash.Hash, 0, count)
	for i := 0; i < count; i++ {
		parent = addBlock(t, dag, buildHeader(parent, nil, 1, startNonce+uint64(i)))
		hashes = append(hashes, parent)
	}
	return hashes
}

func TestAcceptCheckpointAdvancesFrontier(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	// A straggler in genesis's past-side anticone, then a long chain.
	straggler := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 100))
	chain := buildChain(t, dag, genesisHash, 6, 1)
	checkpoint := chain[0]

	if err := dag.AcceptCheckpoint(checkpoint); err != nil {
		t.Fatalf("AcceptCheckpoint: %+v", err)
	}

	if !dag.FrontierHash().IsEqual(checkpoint) {
		t.Fatalf("frontier is %s, want %s", dag.FrontierHash(), checkpoint)
	}
	if dag.FrontierHeight() != 1 {
		t.Fatalf("frontier height is %d, want 1", dag.FrontierHeight())
	}

	// Genesis and the straggler are evicted, the chain above survives.
	for _, evicted := range []*daghash.Hash{genesisHash, straggler} {
		if dag.IsInDAG(evicted) {
			t.Fatalf("evicted block %s is still in the DAG", evicted)
		}
		if !dag.WasPruned(evicted) {
			t.Fatalf("evicted block %s is not recorded as pruned", evicted)
		}
		_, err := dag.Height(evicted)
		checkRuleError(t, err, ErrOutOfWindow)
	}
	for _, retained := range chain {
		if !dag.IsInDAG(retained) {
			t.Fatalf("retained block %s was evicted", retained)
		}
	}

	// Subtree weights over the retained tree are unaffected.
	weight, err := dag.SubtreeWeight(checkpoint)
	if err != nil {
		t.Fatalf("SubtreeWeight: %+v", err)
	}
	if weight != 6 {
		t.Fatalf("retained subtree weight is %d, want 6", weight)
	}

	// The sealed epochs behind the frontier are gone, those above remain.
	_, err = dag.EpochAtHeight(0)
	checkRuleError(t, err, ErrOutOfWindow)
	epoch, err := dag.EpochAtHeight(1)
	if err != nil {
		t.Fatalf("EpochAtHeight: %+v", err)
	}
	if !epoch.PivotHash.IsEqual(checkpoint) {
		t.Fatalf("epoch 1 is anchored at %s, want the checkpoint", epoch.PivotHash)
	}

	// A block naming a pruned parent is rejected, and re-sending a pruned
	// block reports a duplicate, not an unknown block.
	_, err = dag.ProcessBlock(buildHeader(straggler, nil, 1, 200))
	checkRuleError(t, err, ErrUnknownParent)
	_, err = dag.ProcessBlock(buildHeader(genesisHash, nil, 1, 100))
	checkRuleError(t, err, ErrDuplicateBlock)

	// Citing a pruned referee is rejected too, and the error names the
	// frontier rather than an unknown block.
	_, err = dag.ProcessBlock(buildHeader(chain[3], []*daghash.Hash{straggler}, 1, 201))
	checkRuleError(t, err, ErrUnknownReferee)
	if !strings.Contains(err.Error(), "pruning frontier") {
		t.Fatalf("pruned referee error does not name the frontier: %v", err)
	}

	// The frontier keeps advancing on a later checkpoint.
	if err := dag.AcceptCheckpoint(chain[1]); err != nil {
		t.Fatalf("second AcceptCheckpoint: %+v", err)
	}
	if dag.FrontierHeight() != 2 {
		t.Fatalf("frontier height is %d, want 2", dag.FrontierHeight())
	}
}

func TestAcceptCheckpointRejectsShallowCandidates(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	chain := buildChain(t, dag, genesisHash, 4, 1)
	sideBranch := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 100))

	// Too close to the tip: height 1 + depth 4 > tip height 4.
	err := dag.AcceptCheckpoint(chain[0])
	checkRuleError(t, err, ErrCheckpointTooShallow)

	err = dag.AcceptCheckpoint(sideBranch)
	checkRuleError(t, err, ErrCheckpointTooShallow)

	if dag.FrontierHeight() != 0 {
		t.Fatal("a rejected checkpoint moved the frontier")
	}
}

func TestAcceptCheckpointRedundantAndUnknown(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	chain := buildChain(t, dag, genesisHash, 6, 1)
	if err := dag.AcceptCheckpoint(chain[0]); err != nil {
		t.Fatalf("AcceptCheckpoint: %+v", err)
	}

	// The current frontier and anything behind it are redundant, not
	// errors.
	if err := dag.AcceptCheckpoint(chain[0]); err != nil {
		t.Fatalf("re-accepting the frontier: %+v", err)
	}
	if err := dag.AcceptCheckpoint(genesisHash); err != nil {
		t.Fatalf("accepting a pruned candidate: %+v", err)
	}

	if err := dag.AcceptCheckpoint(&daghash.Hash{0x42}); err == nil {
		t.Fatal("accepted a checkpoint that was never in the DAG")
	}
}

func TestReorgBehindFrontierIsIrrecoverable(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	chain := buildChain(t, dag, genesisHash, 6, 1)
	if err := dag.AcceptCheckpoint(chain[0]); err != nil {
		t.Fatalf("AcceptCheckpoint: %+v", err)
	}

	// A reorganization reaching the frontier itself cannot be executed:
	// the displaced history is already pruned.
	dag.dagLock.Lock()
	_, err := dag.applyChainUpdates([]*blockNode{dag.pivotChain[0]}, nil)
	dag.dagLock.Unlock()
	checkRuleError(t, err, ErrIrrecoverableReorg)
}
