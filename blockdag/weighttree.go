package blockdag

// This file implements the weighted dynamic tree that backs pivot selection.
//
// The parent edges of the DAG form a tree rooted at genesis, and every block
// arrival must update the subtree-weight aggregate of each of its ancestors.
// Doing that naively costs O(depth) per block, so the tree is maintained as a
// link-cut structure: preferred paths represented by splay trees keyed by
// depth, with each node carrying the sum of the subtrees hanging off the path
// ("virtual" children). link, addWeight and subtreeWeight all run in
// amortized O(log n).
//
// Nodes live in an arena indexed by stable int32 handles rather than being
// pointer-linked, so eviction at a checkpoint is a freelist operation and the
// structure stays compact.

// nilHandle marks an absent arena reference.
const nilHandle int32 = -1

type weightTreeNode struct {
	// splayParent is the parent within this node's splay tree, or the
	// path-parent of the whole preferred path when the node is a splay
	// root. nilHandle for the root of the accessed top path.
	splayParent int32

	// left and right are splay-tree children. Within a preferred path,
	// in-order position corresponds to tree depth.
	left, right int32

	// weight is the node's own weight, including referee-edge credits
	// applied through addWeight.
	weight uint64

	// virtual is the sum of total over every subtree attached to this
	// node by a non-preferred edge.
	virtual uint64

	// total is weight + virtual + total(left) + total(right); the
	// aggregate over this splay subtree and everything hanging off it.
	total uint64
}

type weightTree struct {
	nodes []weightTreeNode
	free  []int32
}

func newWeightTree() *weightTree {
	return &weightTree{}
}

// newNode allocates an arena slot for a node with the given initial weight
// and returns its handle. The node starts as a single-node tree; attach it
// with link.
func (wt *weightTree) newNode(weight uint64) int32 {
	node := weightTreeNode{
		splayParent: nilHandle,
		left:        nilHandle,
		right:       nilHandle,
		weight:      weight,
		total:       weight,
	}
	if n := len(wt.free); n > 0 {
		handle := wt.free[n-1]
		wt.free = wt.free[:n-1]
		wt.nodes[handle] = node
		return handle
	}
	wt.nodes = append(wt.nodes, node)
	return int32(len(wt.nodes) - 1)
}

// link attaches child (which must be the root of its own tree) below parent.
func (wt *weightTree) link(child, parent int32) {
	wt.access(child)
	wt.access(parent)
	wt.nodes[child].splayParent = parent
	wt.nodes[parent].virtual += wt.nodes[child].total
	wt.pushUp(parent)
}

// addWeight adds delta to the node's own weight, updating every ancestor
// aggregate. Used both for the node's declared weight at link time and for
// referee-edge credits into already-linked blocks.
func (wt *weightTree) addWeight(v int32, delta uint64) {
	wt.access(v)
	wt.nodes[v].weight += delta
	wt.pushUp(v)
}

// subtreeWeight returns the aggregate weight of v's subtree in the real
// tree.
func (wt *weightTree) subtreeWeight(v int32) uint64 {
	// After access, everything below v in the real tree hangs off v as a
	// virtual subtree and v has no preferred child, so the aggregate is
	// exactly weight + virtual.
	wt.access(v)
	return wt.nodes[v].weight + wt.nodes[v].virtual
}

// cutFromParent detaches v from its tree parent, making it the root of its
// own tree. Used when a checkpoint makes a block the new retained root.
func (wt *weightTree) cutFromParent(v int32) {
	wt.access(v)
	left := wt.nodes[v].left
	if left == nilHandle {
		return
	}
	wt.nodes[left].splayParent = nilHandle
	wt.nodes[v].left = nilHandle
	wt.pushUp(v)
}

// freeNode releases an arena slot. The caller is responsible for never using
// the handle again; freeing an entire detached forest at once is safe even
// though its internal references are left dangling.
func (wt *weightTree) freeNode(v int32) {
	wt.nodes[v] = weightTreeNode{splayParent: nilHandle, left: nilHandle, right: nilHandle}
	wt.free = append(wt.free, v)
}

// isSplayRoot returns whether v is the root of its splay tree. A splay root's
// splayParent field, when set, is the path-parent of the preferred path.
func (wt *weightTree) isSplayRoot(v int32) bool {
	p := wt.nodes[v].splayParent
	return p == nilHandle || (wt.nodes[p].left != v && wt.nodes[p].right != v)
}

func (wt *weightTree) pushUp(v int32) {
	total := wt.nodes[v].weight + wt.nodes[v].virtual
	if left := wt.nodes[v].left; left != nilHandle {
		total += wt.nodes[left].total
	}
	if right := wt.nodes[v].right; right != nilHandle {
		total += wt.nodes[right].total
	}
	wt.nodes[v].total = total
}

func (wt *weightTree) rotate(v int32) {
	p := wt.nodes[v].splayParent
	g := wt.nodes[p].splayParent
	pWasRoot := wt.isSplayRoot(p)

	if wt.nodes[p].left == v {
		b := wt.nodes[v].right
		wt.nodes[p].left = b
		if b != nilHandle {
			wt.nodes[b].splayParent = p
		}
		wt.nodes[v].right = p
	} else {
		b := wt.nodes[v].left
		wt.nodes[p].right = b
		if b != nilHandle {
			wt.nodes[b].splayParent = p
		}
		wt.nodes[v].left = p
	}
	wt.nodes[p].splayParent = v
	wt.nodes[v].splayParent = g
	if !pWasRoot {
		if wt.nodes[g].left == p {
			wt.nodes[g].left = v
		} else if wt.nodes[g].right == p {
			wt.nodes[g].right = v
		}
	}

	wt.pushUp(p)
	wt.pushUp(v)
}

func (wt *weightTree) splay(v int32) {
	for !wt.isSplayRoot(v) {
		p := wt.nodes[v].splayParent
		if wt.isSplayRoot(p) {
			wt.rotate(v)
			continue
		}
		g := wt.nodes[p].splayParent
		if (wt.nodes[g].left == p) == (wt.nodes[p].left == v) {
			// zig-zig
			wt.rotate(p)
			wt.rotate(v)
		} else {
			// zig-zag
			wt.rotate(v)
			wt.rotate(v)
		}
	}
}

// access makes the path from the real root to v preferred and splays v to the
// root of that path's splay tree. On return v has no path-parent and no
// preferred child, so its splay-local fields describe its whole real subtree.
func (wt *weightTree) access(v int32) {
	wt.splay(v)

	// Demote v's current preferred child, if any, to a virtual subtree.
	if right := wt.nodes[v].right; right != nilHandle {
		wt.nodes[v].virtual += wt.nodes[right].total
		wt.nodes[v].right = nilHandle
		wt.pushUp(v)
	}

	for wt.nodes[v].splayParent != nilHandle {
		w := wt.nodes[v].splayParent
		wt.splay(w)
		if right := wt.nodes[w].right; right != nilHandle {
			wt.nodes[w].virtual += wt.nodes[right].total
		}
		wt.nodes[w].right = v
		wt.nodes[w].virtual -= wt.nodes[v].total
		wt.pushUp(w)
		wt.splay(v)
	}
}
