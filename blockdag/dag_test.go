package blockdag

import (
	"testing"

	"github.com/ghastnet/ghastd/dagconfig"
	"github.com/ghastnet/ghastd/util/daghash"
	"github.com/ghastnet/ghastd/wire"
)

func TestPivotFollowsHeaviestSubtree(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	// Two competing branches under genesis. The A branch accumulates more
	// subtree weight, so the pivot must run through it.
	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))
	b := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 2))
	c := addBlock(t, dag, buildHeader(a, nil, 1, 3))

	if !dag.PivotTipHash().IsEqual(c) {
		t.Fatalf("pivot tip is %s, want %s", dag.PivotTipHash(), c)
	}
	want := []*daghash.Hash{genesisHash, a, c}
	if got := dag.PivotChainHashes(); !hashesEqual(got, want) {
		t.Fatalf("pivot chain is %s, want %s", daghash.JoinHashesStrings(got, ","),
			daghash.JoinHashesStrings(want, ","))
	}

	// Outweigh the A branch.
	d := addBlock(t, dag, buildHeader(b, nil, 4, 4))
	want = []*daghash.Hash{genesisHash, b, d}
	if got := dag.PivotChainHashes(); !hashesEqual(got, want) {
		t.Fatalf("pivot chain is %s, want %s", daghash.JoinHashesStrings(got, ","),
			daghash.JoinHashesStrings(want, ","))
	}
}

func TestPivotTieBreaksBySmallerHash(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 1))
	b := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 2))

	want := a
	if daghash.Less(b, a) {
		want = b
	}
	if !dag.PivotTipHash().IsEqual(want) {
		t.Fatalf("pivot tip is %s, want the smaller-hash branch %s", dag.PivotTipHash(), want)
	}
}

func TestRefereeCreditStrengthensCitedBranch(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 2, 1))
	b := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 2))

	weightA, err := dag.SubtreeWeight(a)
	if err != nil {
		t.Fatalf("SubtreeWeight: %+v", err)
	}
	if weightA != 2 {
		t.Fatalf("subtree weight of a is %d, want 2", weightA)
	}

	// c extends the B branch and cites a, so its weight counts into both
	// branches' subtrees.
	c := addBlock(t, dag, buildHeader(b, []*daghash.Hash{a}, 3, 3))

	weightA, err = dag.SubtreeWeight(a)
	if err != nil {
		t.Fatalf("SubtreeWeight: %+v", err)
	}
	if weightA != 2+3 {
		t.Fatalf("subtree weight of a is %d, want 5", weightA)
	}
	weightB, err := dag.SubtreeWeight(b)
	if err != nil {
		t.Fatalf("SubtreeWeight: %+v", err)
	}
	if weightB != 1+3 {
		t.Fatalf("subtree weight of b is %d, want 4", weightB)
	}

	// The cited branch outweighs the extended one, so the pivot stays on a.
	if !dag.PivotTipHash().IsEqual(a) {
		t.Fatalf("pivot tip is %s, want %s", dag.PivotTipHash(), a)
	}
	if dag.ChainHeight() != 1 {
		t.Fatalf("chain height is %d, want 1", dag.ChainHeight())
	}

	_, assigned, err := dag.EpochContaining(c)
	if err != nil {
		t.Fatalf("EpochContaining: %+v", err)
	}
	if assigned {
		t.Fatal("a block on the losing branch was ordered into an epoch")
	}
}

func TestArrivalOrderIndependence(t *testing.T) {
	// A small diamond with a cross citation:
	//
	//	    G
	//	   / \
	//	  a   b
	//	  |   |
	//	  c...b (c cites b)
	//	  |
	//	  d
	genesisHash := dagconfig.SimnetParams.GenesisHash
	a := buildHeader(genesisHash, nil, 1, 1)
	aHash := a.BlockHash()
	b := buildHeader(genesisHash, nil, 2, 2)
	bHash := b.BlockHash()
	c := buildHeader(&aHash, []*daghash.Hash{&bHash}, 3, 3)
	cHash := c.BlockHash()
	d := buildHeader(&cHash, nil, 1, 4)

	headers := []*wire.BlockHeader{a, b, c, d}
	orders := validInsertionOrders(headers)
	if len(orders) < 2 {
		t.Fatalf("expected multiple valid insertion orders, got %d", len(orders))
	}

	var wantChain []*daghash.Hash
	var wantEpochs [][]*daghash.Hash
	for i, order := range orders {
		dag, _ := newTestDAG(t)
		for _, header := range order {
			addBlock(t, dag, header)
		}

		chain := dag.PivotChainHashes()
		epochs := make([][]*daghash.Hash, 0, len(chain))
		for height := range chain {
			epoch, err := dag.EpochAtHeight(uint64(height))
			if err != nil {
				t.Fatalf("EpochAtHeight(%d): %+v", height, err)
			}
			epochs = append(epochs, epoch.BlockHashes)
		}

		if i == 0 {
			wantChain = chain
			wantEpochs = epochs
			continue
		}
		if !hashesEqual(chain, wantChain) {
			t.Fatalf("insertion order %d produced pivot chain %s, want %s", i,
				daghash.JoinHashesStrings(chain, ","), daghash.JoinHashesStrings(wantChain, ","))
		}
		for height := range epochs {
			if !hashesEqual(epochs[height], wantEpochs[height]) {
				t.Fatalf("insertion order %d produced epoch %d order %s, want %s", i, height,
					daghash.JoinHashesStrings(epochs[height], ","),
					daghash.JoinHashesStrings(wantEpochs[height], ","))
			}
		}
	}
}

// validInsertionOrders enumerates the permutations of headers in which every
// header's parent and referees precede it.
func validInsertionOrders(headers []*wire.BlockHeader) [][]*wire.BlockHeader {
	var orders [][]*wire.BlockHeader

	var permute func(prefix, remaining []*wire.BlockHeader)
	permute = func(prefix, remaining []*wire.BlockHeader) {
		if len(remaining) == 0 {
			order := make([]*wire.BlockHeader, len(prefix))
			copy(order, prefix)
			orders = append(orders, order)
			return
		}
		for i, candidate := range remaining {
			if !dependenciesSatisfied(candidate, prefix) {
				continue
			}
			rest := make([]*wire.BlockHeader, 0, len(remaining)-1)
			rest = append(rest, remaining[:i]...)
			rest = append(rest, remaining[i+1:]...)
			permute(append(prefix, candidate), rest)
		}
	}
	permute(nil, headers)
	return orders
}

func dependenciesSatisfied(header *wire.BlockHeader, prefix []*wire.BlockHeader) bool {
	available := map[daghash.Hash]struct{}{*dagconfig.SimnetParams.GenesisHash: {}}
	for _, prior := range prefix {
		available[prior.BlockHash()] = struct{}{}
	}
	if _, ok := available[header.ParentHash]; !ok {
		return false
	}
	for _, refereeHash := range header.RefereeHashes {
		if _, ok := available[refereeHash]; !ok {
			return false
		}
	}
	return true
}

func TestDAGQueries(t *testing.T) {
	dag, _ := newTestDAG(t)
	genesisHash := dag.Params.GenesisHash

	a := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 1))
	b := addBlock(t, dag, buildHeader(genesisHash, nil, 1, 2))
	c := addBlock(t, dag, buildHeader(a, []*daghash.Hash{b}, 1, 3))

	if !dag.IsInDAG(c) {
		t.Fatal("IsInDAG does not know an accepted block")
	}
	if dag.IsInDAG(&daghash.Hash{0x99}) {
		t.Fatal("IsInDAG knows a block that was never accepted")
	}

	height, err := dag.Height(c)
	if err != nil {
		t.Fatalf("Height: %+v", err)
	}
	if height != 2 {
		t.Fatalf("height of c is %d, want 2", height)
	}

	header, err := dag.BlockByHash(c)
	if err != nil {
		t.Fatalf("BlockByHash: %+v", err)
	}
	if headerHash := header.BlockHash(); !headerHash.IsEqual(c) {
		t.Fatalf("returned header hashes to %s, want %s", &headerHash, c)
	}
	if !header.ParentHash.IsEqual(a) || len(header.RefereeHashes) != 1 ||
		!header.RefereeHashes[0].IsEqual(b) {
		t.Fatal("returned header does not carry the declared edges")
	}
	if _, err := dag.BlockByHash(&daghash.Hash{0x99}); err == nil {
		t.Fatal("BlockByHash returned a header for an unknown block")
	}

	children, err := dag.ChildrenOf(genesisHash)
	if err != nil {
		t.Fatalf("ChildrenOf: %+v", err)
	}
	if !hashesEqual(children, []*daghash.Hash{a, b}) {
		t.Fatalf("children of genesis are %s, want %s and %s",
			daghash.JoinHashesStrings(children, ","), a, b)
	}

	// b reaches c through the referee edge, a through the parent edge.
	for _, ancestor := range []*daghash.Hash{a, b, genesisHash} {
		inPast, err := dag.IsInPast(ancestor, c)
		if err != nil {
			t.Fatalf("IsInPast: %+v", err)
		}
		if !inPast {
			t.Fatalf("%s is not in the past of c", ancestor)
		}
	}
	inPast, err := dag.IsInPast(c, a)
	if err != nil {
		t.Fatalf("IsInPast: %+v", err)
	}
	if inPast {
		t.Fatal("c is in the past of its own ancestor")
	}

	// a and b are mutually unordered until c cites b.
	anticone, err := dag.AnticoneOf(a, []*daghash.Hash{genesisHash, b, c})
	if err != nil {
		t.Fatalf("AnticoneOf: %+v", err)
	}
	if !hashesEqual(anticone, []*daghash.Hash{b}) {
		t.Fatalf("anticone of a is %s, want %s", daghash.JoinHashesStrings(anticone, ","), b)
	}

	iterator, err := dag.AncestorsOf(c)
	if err != nil {
		t.Fatalf("AncestorsOf: %+v", err)
	}
	var walked []*daghash.Hash
	for iterator.Next() {
		walked = append(walked, iterator.Hash())
	}
	if !hashesEqual(walked, []*daghash.Hash{a, genesisHash}) {
		t.Fatalf("ancestors of c are %s, want a then genesis",
			daghash.JoinHashesStrings(walked, ","))
	}
}
