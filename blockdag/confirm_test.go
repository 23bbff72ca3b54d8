package blockdag

import (
	"testing"

	"github.com/ghastnet/ghastd/util/daghash"
)

func TestConfirmationRiskBounds(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	risk, err := dag.ConfirmationRisk(genesisHash)
	if err != nil {
		t.Fatalf("ConfirmationRisk: %+v", err)
	}
	if risk != 0 {
		t.Fatalf("genesis risk is %g, want 0", risk)
	}

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))
	b := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 2))

	risk, err = dag.ConfirmationRisk(b)
	if err != nil {
		t.Fatalf("ConfirmationRisk: %+v", err)
	}
	if risk != 1 {
		t.Fatalf("risk of a non-chain block is %g, want 1", risk)
	}

	risk, err = dag.ConfirmationRisk(a)
	if err != nil {
		t.Fatalf("ConfirmationRisk: %+v", err)
	}
	if risk <= 0 || risk >= 1 {
		t.Fatalf("risk of a fresh contested chain block is %g, want within (0, 1)", risk)
	}

	if _, err := dag.ConfirmationRisk(&daghash.Hash{0x77}); err == nil {
		t.Fatal("ConfirmationRisk accepted an unknown block")
	}
}

func TestConfirmationRiskDecreasesAsChainGrows(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))
	addBlock(t, dag, buildHeader(genesisHash, nil, 1, 2))

	previous, err := dag.ConfirmationRisk(a)
	if err != nil {
		t.Fatalf("ConfirmationRisk: %+v", err)
	}

	tip := a
	for nonce := uint64(3); nonce < 10; nonce++ {
		tip = addBlock(t, dag, buildHeader(tip, nil, 1, nonce))
		risk, err := dag.ConfirmationRisk(a)
		if err != nil {
			t.Fatalf("ConfirmationRisk: %+v", err)
		}
		if risk >= previous {
			t.Fatalf("risk did not decrease: %g then %g", previous, risk)
		}
		previous = risk
	}

	confirmed, err := dag.IsConfirmed(a, dag.Params.ConfirmationRiskThreshold)
	if err != nil {
		t.Fatalf("IsConfirmed: %+v", err)
	}
	if !confirmed {
		t.Fatalf("block with risk %g is not confirmed under threshold %g",
			previous, dag.Params.ConfirmationRiskThreshold)
	}
}
