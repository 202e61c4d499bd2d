// Package list implements an intrusive circular doubly-linked list: a ring
// including its own root, where every member shares the root's identity,
// so a node's list membership can be tested by pointer comparison alone.
//
// Grounded on Diminuto/tst/unittest-list.c (the root-identity and audit
// invariants exercised there) and the pointer-heavy node style used
// throughout this module's other allocator packages. A tagged
// Free/Member-with-handle variant was considered and rejected: plain
// *Node fields suffice, since Go's nil already distinguishes "unlinked"
// from "linked to ring R" without a tag, and every other allocator
// package here (pool, well, buffer) already assumes pointer identity for
// its own free-list bookkeeping.
package list

// Node is one element of a ring. A zero-value Node is unlinked: Root is
// nil, and Prev/Next are nil. Init (or one of the other *init variants)
// must be called before a Node participates in a ring.
type Node struct {
	prev *Node
	next *Node
	root *Node
	data any
}

// New returns a freshly initialized, self-rooted Node (a one-element ring).
func New(data any) *Node {
	n := &Node{}
	return n.Init(data)
}

// Init (re)initializes n as a self-rooted, one-element ring holding data.
// Any prior linkage is discarded without unlinking n from its old ring;
// callers that need that must Remove first.
func (n *Node) Init(data any) *Node {
	n.root = n
	n.prev = n
	n.next = n
	n.data = data
	return n
}

// NullInit is Init with a nil payload.
func (n *Node) NullInit() *Node {
	return n.Init(nil)
}

// DataInit sets the payload of an already-linked node without touching its
// linkage, returning n.
func (n *Node) DataInit(data any) *Node {
	n.data = data
	return n
}

// Fini unlinks n from whatever ring it belongs to (equivalent to Remove)
// and clears it back to the unlinked zero value.
func (n *Node) Fini() {
	n.Remove()
	n.prev = nil
	n.next = nil
	n.root = nil
	n.data = nil
}

// Data returns the node's opaque payload. List never interprets it.
func (n *Node) Data() any { return n.data }

// Root returns the root of the ring n belongs to (n itself if n is a
// self-rooted one-element ring or is itself the root; nil for a
// zero-value Node).
func (n *Node) Root() *Node { return n.root }

// IsRoot reports whether n is the root of its own ring.
func (n *Node) IsRoot() bool { return n.root == n }

// IsMember reports whether n belongs to the ring rooted at root.
func (n *Node) IsMember(root *Node) bool { return n.root == root }

// IsEmpty reports whether root's ring contains no members besides root
// itself.
func (root *Node) IsEmpty() bool { return root.next == root }

// AreSiblings reports whether a and b belong to the same ring.
func (a *Node) AreSiblings(b *Node) bool { return a.root == b.root }

// Next returns the next node in the ring (the root, if n is the last
// member).
func (n *Node) Next() *Node { return n.next }

// Prev returns the previous node in the ring (the root, if n is the first
// member).
func (n *Node) Prev() *Node { return n.prev }

// Head returns the first member of root's ring, or root itself if empty.
func (root *Node) Head() *Node { return root.next }

// Tail returns the last member of root's ring, or root itself if empty.
func (root *Node) Tail() *Node { return root.prev }

// Insert splices n in immediately after after, adopting after's root.
// n must not already be linked into a different ring with members other
// than itself; callers that need to move a linked node call Remove first.
func (after *Node) Insert(n *Node) *Node {
	n.prev = after
	n.next = after.next
	after.next.prev = n
	after.next = n
	n.root = after.root
	return n
}

// Push inserts n at the head of root's ring (stack push).
func (root *Node) Push(n *Node) *Node {
	return root.Insert(n)
}

// Enqueue inserts n at the tail of root's ring (queue enqueue).
func (root *Node) Enqueue(n *Node) *Node {
	return root.prev.Insert(n)
}

// Remove unlinks n from its ring, restoring the ring's invariants. n
// becomes a self-rooted one-element ring holding its prior data; n's old
// neighbors are spliced together. Removing the last non-root member
// leaves the ring empty (root.prev == root.next == root).
func (n *Node) Remove() *Node {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = n
	n.next = n
	n.root = n
	return n
}

// Pop removes and returns the head of root's ring, or nil if empty.
func (root *Node) Pop() *Node {
	if root.IsEmpty() {
		return nil
	}
	return root.next.Remove()
}

// Dequeue removes and returns the head of root's ring, or nil if empty.
// Equivalent to Pop; provided because queue/stack usage reads differently
// at call sites even though both dequeue from the head.
func (root *Node) Dequeue() *Node {
	return root.Pop()
}

// Replace substitutes newNode for old in old's ring: old is unlinked (left
// self-rooted) and newNode takes its place with old's former neighbors and
// root.
func (old *Node) Replace(newNode *Node) *Node {
	newNode.prev = old.prev
	newNode.next = old.next
	newNode.root = old.root
	old.prev.next = newNode
	old.next.prev = newNode
	old.prev = old
	old.next = old
	old.root = old
	return old
}

// Reroot rebases every node of n's ring so Root() returns n, and returns n
// as the new root. Used internally by Cut/Splice; exposed because callers
// occasionally need to promote an arbitrary member to root without moving
// any nodes (e.g. after a root was Fini'd out from under a live ring).
func (n *Node) Reroot() *Node {
	for cur := n.next; cur != n; cur = cur.next {
		cur.root = n
	}
	n.root = n
	return n
}

// Cut excises the contiguous run [from..to] (inclusive, from and to must
// be members of the same ring, with from reachable from to by following
// Next) from its ring and rebases it as a new ring rooted at from. The
// original ring is repaired to skip the excised run. O(length of the
// excised run), because every moved node's root must be updated.
func Cut(from, to *Node) *Node {
	beforeFrom := from.prev
	afterTo := to.next

	beforeFrom.next = afterTo
	afterTo.prev = beforeFrom

	from.prev = to
	to.next = from

	return from.Reroot()
}

// Splice grafts the ring rooted at node (node itself followed by every
// other member of node's ring, in order) into at's ring, immediately
// before at, adopting at's root. node is left referencing the same
// members, now rebased onto at's root; it no longer identifies a distinct
// ring. O(length of the spliced run).
func Splice(at, node *Node) {
	first := node
	last := node.prev

	beforeAt := at.prev
	beforeAt.next = first
	first.prev = beforeAt
	at.prev = last
	last.next = at

	for cur := first; ; cur = cur.next {
		cur.root = at.root
		if cur == last {
			break
		}
	}
}

// Functor is applied by Apply to each node's data plus a caller-supplied
// context. Returning zero stops the walk and selects the current node;
// any nonzero return continues the walk.
type Functor func(data any, context any) int

// Apply walks the ring starting at start, calling f(node.Data(), context)
// for each node, until f returns zero (that node is returned) or the walk
// returns to root (root is returned). Callers that want to skip the root
// itself pass start = root.Head().
func Apply(root *Node, f Functor, start *Node, context any) *Node {
	if start == nil {
		start = root
	}
	for cur := start; ; cur = cur.next {
		if f(cur.data, context) == 0 {
			return cur
		}
		if cur.next == root {
			return root
		}
	}
}

// Audit walks n's entire ring and verifies its invariants: prev/next are
// mutually consistent, every reachable node shares n's root, and the ring
// is circular. It returns the first node (or root, or nil) at which an
// invariant is violated, or nil if the ring is sound.
func Audit(n *Node) *Node {
	if n == nil {
		return nil
	}
	root := n.root
	cur := n
	for {
		if cur.next.prev != cur {
			return cur
		}
		if cur.prev.next != cur {
			return cur
		}
		if cur.root != root {
			return cur
		}
		cur = cur.next
		if cur == n {
			return nil
		}
	}
}
