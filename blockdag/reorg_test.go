package blockdag

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/util/daghash"
)

func TestReorgRollsBackAndReplays(t *testing.T) {
	dag, orchestrator := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))
	a2 := addBlock(t, dag, buildHeader(a, nil, 1, 2))

	var chainNotifications []*ChainChangedNotificationData
	dag.Subscribe(func(notification *Notification) {
		if data, ok := notification.Data.(*ChainChangedNotificationData); ok {
			chainNotifications = append(chainNotifications, data)
		}
	})

	// A heavier sibling branch displaces a and a2.
	b := addBlock(t, dag, buildHeader(genesisHash, nil, 4, 3))

	if len(orchestrator.rollbacks) != 1 || orchestrator.rollbacks[0] != 0 {
		t.Fatalf("rollbacks are %v, want a single rollback to height 0", orchestrator.rollbacks)
	}
	want := []*daghash.Hash{genesisHash, b}
	if got := dag.PivotChainHashes(); !hashesEqual(got, want) {
		t.Fatalf("pivot chain is %s, want genesis then b", daghash.JoinHashesStrings(got, ","))
	}

	if len(chainNotifications) != 1 {
		t.Fatalf("got %d chain change notifications, want 1", len(chainNotifications))
	}
	change := chainNotifications[0]
	if !hashesEqual(change.RemovedChainBlockHashes, []*daghash.Hash{a, a2}) {
		t.Fatalf("removed chain blocks are %s, want a then a2",
			daghash.JoinHashesStrings(change.RemovedChainBlockHashes, ","))
	}
	if !hashesEqual(change.AddedChainBlockHashes, []*daghash.Hash{b}) {
		t.Fatalf("added chain blocks are %s, want just b",
			daghash.JoinHashesStrings(change.AddedChainBlockHashes, ","))
	}

	// Displaced blocks return to the pending state.
	for _, hash := range []*daghash.Hash{a, a2} {
		_, assigned, err := dag.EpochContaining(hash)
		if err != nil {
			t.Fatalf("EpochContaining: %+v", err)
		}
		if assigned {
			t.Fatalf("displaced block %s is still epoch-assigned", hash)
		}
	}

	// The replayed epoch was committed anew and carries a state root.
	epoch, err := dag.EpochAtHeight(1)
	if err != nil {
		t.Fatalf("EpochAtHeight: %+v", err)
	}
	if !epoch.PivotHash.IsEqual(b) {
		t.Fatalf("epoch 1 is anchored at %s, want %s", epoch.PivotHash, b)
	}
	if epoch.StateRoot == (StateRoot{}) {
		t.Fatal("the replayed epoch carries no state root")
	}
	lastCommit := orchestrator.commits[len(orchestrator.commits)-1]
	if !lastCommit.PivotHash.IsEqual(b) {
		t.Fatalf("the last commit is anchored at %s, want %s", lastCommit.PivotHash, b)
	}
}

func TestReorgResettlesDisplacedBlocks(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))
	a2 := addBlock(t, dag, buildHeader(a, nil, 1, 2))
	b := addBlock(t, dag, buildHeader(genesisHash, nil, 4, 3))

	// After the reorg onto b the displaced branch is pending. A pivot
	// block citing its tip settles the whole branch into one epoch.
	c := addBlock(t, dag, buildHeader(b, []*daghash.Hash{a2}, 1, 4))
	want := []*daghash.Hash{genesisHash, b, c}
	if got := dag.PivotChainHashes(); !hashesEqual(got, want) {
		t.Fatalf("pivot chain is %s, want genesis, b, c", daghash.JoinHashesStrings(got, ","))
	}

	epoch, err := dag.EpochAtHeight(2)
	if err != nil {
		t.Fatalf("EpochAtHeight: %+v", err)
	}
	if !hashesEqual(epoch.BlockHashes, []*daghash.Hash{a, a2, c}) {
		t.Fatalf("epoch of c is %s, want a, a2, c",
			daghash.JoinHashesStrings(epoch.BlockHashes, ","))
	}
	for _, hash := range []*daghash.Hash{a, a2} {
		epoch, assigned, err := dag.EpochContaining(hash)
		if err != nil {
			t.Fatalf("EpochContaining: %+v", err)
		}
		if !assigned || epoch.Height != 2 {
			t.Fatalf("displaced block %s was not resettled at height 2", hash)
		}
	}
}

func TestReplayFailureFaultsTheDAG(t *testing.T) {
	dag, orchestrator := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))

	orchestrator.commitErr = errors.New("state store is down")
	if _, err := dag.ProcessBlock(buildHeader(a, nil, 1, 2)); err == nil {
		t.Fatal("a failed epoch commit did not surface an error")
	}

	// The failed replay latches a fault: the DAG refuses every further
	// mutation, even after the orchestrator recovers.
	orchestrator.commitErr = nil
	if _, err := dag.ProcessBlock(buildHeader(a, nil, 1, 3)); err == nil {
		t.Fatal("a faulted DAG accepted a block")
	}
	if err := dag.AcceptCheckpoint(a); err == nil {
		t.Fatal("a faulted DAG accepted a checkpoint")
	}
}

func TestRollbackFailureFaultsTheDAG(t *testing.T) {
	dag, orchestrator := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))

	// A heavier sibling displaces a, and the rollback of a's epoch fails.
	orchestrator.rollbackErr = errors.New("state store is down")
	if _, err := dag.ProcessBlock(buildHeader(genesisHash, nil, 4, 2)); err == nil {
		t.Fatal("a failed rollback did not surface an error")
	}

	orchestrator.rollbackErr = nil
	if _, err := dag.ProcessBlock(buildHeader(a, nil, 1, 3)); err == nil {
		t.Fatal("a faulted DAG accepted a block")
	}
}

func TestReorgIdempotentWhenChainUnchanged(t *testing.T) {
	dag, orchestrator := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 5, 1))
	addBlock(t, dag, buildHeader(a, nil, 5, 2))
	rollbacksBefore := len(orchestrator.rollbacks)

	// A light straggler on a side branch must not disturb the chain.
	updates, err := dag.ProcessBlock(buildHeader(genesisHash, nil, 1, 3))
	if err != nil {
		t.Fatalf("ProcessBlock: %+v", err)
	}
	if len(updates.RemovedChainBlockHashes) != 0 || len(updates.AddedChainBlockHashes) != 0 {
		t.Fatal("a losing straggler changed the pivot chain")
	}
	if len(orchestrator.rollbacks) != rollbacksBefore {
		t.Fatal("a losing straggler triggered a rollback")
	}
}
