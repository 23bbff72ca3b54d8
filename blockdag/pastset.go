package blockdag

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// pastSetTracker answers ancestry and anticone queries with per-block
// bit-vectors instead of graph walks.
//
// Every in-window block owns a bitset in which bit i is set iff the block
// whose bit index is i lies in its past (ancestors through parent and referee
// edges combined). The set is built incrementally on ingestion as the union
// of the parent's and referees' past sets plus the parent and referees
// themselves, so no query ever recomputes reachability from scratch.
//
// Bit indices are scoped to the unpruned window. When a checkpoint advances
// the pruning frontier the tracker is compacted: retained blocks are assigned
// fresh bit indices and their bitsets rebuilt, an explicit remapping step
// rather than implicit garbage collection.
type pastSetTracker struct {
	// window is the maximum number of blocks the tracker will index
	// between checkpoints.
	window uint64

	// bitOf maps a block's insertion sequence to its window-relative bit
	// index. Absence means the block is behind the pruning frontier.
	bitOf map[uint64]uint

	// pasts maps a block's insertion sequence to its past bitset.
	pasts map[uint64]*bitset.BitSet

	// byBit maps bit indices back to nodes for enumerating set members.
	byBit []*blockNode
}

func newPastSetTracker(window uint64) *pastSetTracker {
	return &pastSetTracker{
		window: window,
		bitOf:  make(map[uint64]uint),
		pasts:  make(map[uint64]*bitset.BitSet),
	}
}

// inWindow returns whether the tracker still holds state for the node.
func (pt *pastSetTracker) inWindow(node *blockNode) bool {
	_, ok := pt.bitOf[node.sequence]
	return ok
}

// addBlock assigns the node a bit index and derives its past set from its
// parent and referees, which must already be tracked.
func (pt *pastSetTracker) addBlock(node *blockNode) error {
	if uint64(len(pt.byBit)) >= pt.window {
		str := fmt.Sprintf("anticone tracker window of %d blocks exhausted; "+
			"a checkpoint must advance the pruning frontier first", pt.window)
		return ruleError(ErrOutOfWindow, str)
	}

	bit := uint(len(pt.byBit))
	past := bitset.New(bit + 1)
	if node.parent != nil {
		past.InPlaceUnion(pt.pasts[node.parent.sequence])
		past.Set(pt.bitOf[node.parent.sequence])
	}
	for _, referee := range node.referees {
		past.InPlaceUnion(pt.pasts[referee.sequence])
		past.Set(pt.bitOf[referee.sequence])
	}

	pt.bitOf[node.sequence] = bit
	pt.pasts[node.sequence] = past
	pt.byBit = append(pt.byBit, node)
	return nil
}

// isInPast returns whether a lies in the past of b. A block is not in its own
// past.
func (pt *pastSetTracker) isInPast(a, b *blockNode) (bool, error) {
	bitA, ok := pt.bitOf[a.sequence]
	if !ok {
		return false, ruleError(ErrOutOfWindow, outOfWindowString(a))
	}
	pastB, ok := pt.pasts[b.sequence]
	if !ok {
		return false, ruleError(ErrOutOfWindow, outOfWindowString(b))
	}
	return pastB.Test(bitA), nil
}

// anticone returns, in candidate order, the members of candidates that are
// neither in the past nor in the future of b, excluding b itself.
func (pt *pastSetTracker) anticone(b *blockNode, candidates []*blockNode) ([]*blockNode, error) {
	var anticone []*blockNode
	for _, candidate := range candidates {
		if candidate == b {
			continue
		}
		inPast, err := pt.isInPast(candidate, b)
		if err != nil {
			return nil, err
		}
		inFuture, err := pt.isInPast(b, candidate)
		if err != nil {
			return nil, err
		}
		if !inPast && !inFuture {
			anticone = append(anticone, candidate)
		}
	}
	return anticone, nil
}

// pastDifference returns the blocks in the past of b but not in the past of
// prev, ordered by insertion sequence. prev itself is removed from the
// result; b is not a member of its own past and is therefore never included.
func (pt *pastSetTracker) pastDifference(b, prev *blockNode) ([]*blockNode, error) {
	pastB, ok := pt.pasts[b.sequence]
	if !ok {
		return nil, ruleError(ErrOutOfWindow, outOfWindowString(b))
	}
	pastPrev, ok := pt.pasts[prev.sequence]
	if !ok {
		return nil, ruleError(ErrOutOfWindow, outOfWindowString(prev))
	}

	diff := pastB.Difference(pastPrev)
	if bit, ok := pt.bitOf[prev.sequence]; ok {
		diff.Clear(bit)
	}

	members := make([]*blockNode, 0, diff.Count())
	for bit, ok := diff.NextSet(0); ok; bit, ok = diff.NextSet(bit + 1) {
		members = append(members, pt.byBit[bit])
	}
	return members, nil
}

// compact rebuilds the tracker for the retained nodes only. retained must be
// in insertion order and closed under in-window parents: the new root comes
// first with a nil parent, and every other node's parent appears before it.
// Referee edges into pruned history are dropped; their contribution is
// finalized behind the checkpoint.
func (pt *pastSetTracker) compact(retained []*blockNode) {
	pt.bitOf = make(map[uint64]uint, len(retained))
	pt.pasts = make(map[uint64]*bitset.BitSet, len(retained))
	pt.byBit = pt.byBit[:0]

	for _, node := range retained {
		bit := uint(len(pt.byBit))
		past := bitset.New(bit + 1)
		if node.parent != nil {
			past.InPlaceUnion(pt.pasts[node.parent.sequence])
			past.Set(pt.bitOf[node.parent.sequence])
		}
		for _, referee := range node.referees {
			refereeBit, ok := pt.bitOf[referee.sequence]
			if !ok {
				continue
			}
			past.InPlaceUnion(pt.pasts[referee.sequence])
			past.Set(refereeBit)
		}
		pt.bitOf[node.sequence] = bit
		pt.pasts[node.sequence] = past
		pt.byBit = append(pt.byBit, node)
	}
}

func outOfWindowString(node *blockNode) string {
	return fmt.Sprintf("block %s is behind the pruning frontier", node)
}
