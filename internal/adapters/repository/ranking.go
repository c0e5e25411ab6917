package repository

import "math/rand/v2"

// ranking is a treap keyed by (OVR desc, ID asc), so an in-order walk
// yields the leaderboard from best to worst. Node priorities are random,
// which keeps the expected depth logarithmic.
type ranking struct {
	root *rankNode
}

type rankNode struct {
	id    string
	ovr   int
	prio  uint64
	left  *rankNode
	right *rankNode
	size  int
}

func nsize(n *rankNode) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *rankNode) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// before reports whether (aOVR, aID) ranks ahead of (bOVR, bID).
func before(aOVR int, aID string, bOVR int, bID string) bool {
	if aOVR != bOVR {
		return aOVR > bOVR
	}
	return aID < bID
}

func rotateRight(y *rankNode) *rankNode {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *rankNode) *rankNode {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insertNode(n *rankNode, id string, ovr int) *rankNode {
	if n == nil {
		return &rankNode{id: id, ovr: ovr, prio: rand.Uint64(), size: 1} //nolint:gosec // balancing only
	}
	if before(ovr, id, n.ovr, n.id) {
		n.left = insertNode(n.left, id, ovr)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insertNode(n.right, id, ovr)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *rankNode, id string, ovr int) *rankNode {
	if n == nil {
		return nil
	}
	switch {
	case n.id == id && n.ovr == ovr:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, ovr)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, ovr)
		}
	case before(ovr, id, n.ovr, n.id):
		n.left = deleteNode(n.left, id, ovr)
	default:
		n.right = deleteNode(n.right, id, ovr)
	}
	fix(n)
	return n
}

func (r *ranking) insert(id string, ovr int) { r.root = insertNode(r.root, id, ovr) }

func (r *ranking) remove(id string, ovr int) { r.root = deleteNode(r.root, id, ovr) }

func (r *ranking) len() int { return nsize(r.root) }

// top visits at most limit ids in rank order.
func (r *ranking) top(limit int, visit func(id string)) {
	count := 0
	var walk func(n *rankNode)
	walk = func(n *rankNode) {
		if n == nil || count >= limit {
			return
		}
		walk(n.left)
		if count < limit {
			visit(n.id)
			count++
		}
		walk(n.right)
	}
	walk(r.root)
}
