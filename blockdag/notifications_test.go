package blockdag

import (
	"testing"
)

func TestNotifications(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	var received []*Notification
	dag.Subscribe(func(notification *Notification) {
		received = append(received, notification)
	})

	hash := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 1))

	if len(received) != 3 {
		t.Fatalf("got %d notifications, want block added, chain changed and epoch sealed", len(received))
	}

	blockAdded, ok := received[0].Data.(*BlockAddedNotificationData)
	if !ok || received[0].Type != NTBlockAdded {
		t.Fatalf("first notification is %s, want %s", received[0].Type, NTBlockAdded)
	}
	if !blockAdded.Hash.IsEqual(hash) || blockAdded.Height != 1 {
		t.Fatalf("block added notification names %s at %d", blockAdded.Hash, blockAdded.Height)
	}

	chainChanged, ok := received[1].Data.(*ChainChangedNotificationData)
	if !ok || received[1].Type != NTChainChanged {
		t.Fatalf("second notification is %s, want %s", received[1].Type, NTChainChanged)
	}
	if len(chainChanged.AddedChainBlockHashes) != 1 ||
		!chainChanged.AddedChainBlockHashes[0].IsEqual(hash) {
		t.Fatal("chain changed notification does not name the new chain block")
	}

	epochSealed, ok := received[2].Data.(*EpochSealedNotificationData)
	if !ok || received[2].Type != NTEpochSealed {
		t.Fatalf("third notification is %s, want %s", received[2].Type, NTEpochSealed)
	}
	if epochSealed.Epoch.Height != 1 || !epochSealed.Epoch.PivotHash.IsEqual(hash) {
		t.Fatal("epoch sealed notification does not describe the new epoch")
	}

	// Queries from inside a callback must not deadlock.
	done := make(chan struct{})
	dag.Subscribe(func(notification *Notification) {
		if notification.Type == NTBlockAdded {
			dag.ChainHeight()
			close(done)
		}
	})
	addBlock(t, dag, buildHeader(hash, nil, 1, 2))
	<-done
}
