package blockdag

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/dagconfig"
	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

// testOrchestrator records every commit and rollback the DAG emits.
type testOrchestrator struct {
	commits     []*Epoch
	rollbacks   []uint64
	commitErr   error
	rollbackErr error
}

func (o *testOrchestrator) CommitEpoch(epoch *Epoch) (StateRoot, error) {
	if o.commitErr != nil {
		return StateRoot{}, o.commitErr
	}
	o.commits = append(o.commits, epoch)
	var root StateRoot
	root[0] = byte(len(o.commits))
	return root, nil
}

func (o *testOrchestrator) RollbackTo(height uint64) error {
	if o.rollbackErr != nil {
		return o.rollbackErr
	}
	o.rollbacks = append(o.rollbacks, height)
	return nil
}

// newTestDAG creates a memory-only DAG on the simnet parameters with a
// recording orchestrator.
func newTestDAG(t *testing.T) (*BlockDAG, *testOrchestrator) {
	t.Helper()
	return newTestDAGWithParams(t, &dagconfig.SimnetParams)
}

func newTestDAGWithParams(t *testing.T, params *dagconfig.Params) (*BlockDAG, *testOrchestrator) {
	t.Helper()
	orchestrator := &testOrchestrator{}
	dag, err := New(&Config{
		DAGParams:    params,
		Orchestrator: orchestrator,
	})
	if err != nil {
		t.Fatalf("New: %+v", err)
	}
	return dag, orchestrator
}

// buildHeader builds a block header on top of the given parent. The nonce
// keeps otherwise identical headers distinct.
func buildHeader(parentHash *daghash.Hash, refereeHashes []*daghash.Hash, weight, nonce uint64) *wire.BlockHeader {
	header := &wire.BlockHeader{
		Version:    1,
		ParentHash: *parentHash,
		Weight:     weight,
		Nonce:      nonce,
		Timestamp:  1600000000 + int64(nonce),
	}
	for _, refereeHash := range refereeHashes {
		header.RefereeHashes = append(header.RefereeHashes, *refereeHash)
	}
	return header
}

// addBlock processes the header, failing the test on any error, and returns
// the block's hash.
func addBlock(t *testing.T, dag *BlockDAG, header *wire.BlockHeader) *daghash.Hash {
	t.Helper()
	if _, err := dag.ProcessBlock(header); err != nil {
		t.Fatalf("ProcessBlock(%s): %+v", header.BlockHash(), err)
	}
	hash := header.BlockHash()
	return &hash
}

// checkRuleError ensures err is a RuleError with the expected code.
func checkRuleError(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var ruleErr RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected a RuleError with code %s, got %+v", code, err)
	}
	if ruleErr.ErrorCode != code {
		t.Fatalf("unexpected error code: got %s, want %s", ruleErr.ErrorCode, code)
	}
}

// hashesEqual compares two hash slices element-wise.
func hashesEqual(a, b []*daghash.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].IsEqual(b[i]) {
			return false
		}
	}
	return true
}
