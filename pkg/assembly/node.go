package assembly

import "github.com/bradfordvt/P2654Model/pkg/rvf"

// PendingTracker is injected into every node at construction time instead
// of the source's hidden Scheduler singleton (spec §9 "Globals"). The
// scheduler package implements it; the assembly package never imports
// scheduler, avoiding an import cycle.
type PendingTracker interface {
	MarkPending()
	ClearPending()
}

// Node is the common capability set spec §9 calls for: the four node
// variants (Leaf, Linker, Super, plus the stub kinds) all satisfy it, and
// dispatch between them happens by Kind() rather than by runtime type
// assertion wherever the behavior actually differs.
type Node interface {
	UID() int
	Name() string
	Kind() Kind
	Visible() bool
	Children() []Node

	// Apply drives this node's contribution to one traversal of the
	// apply cycle: recurse into children, then aggregate/emit this
	// node's own pending access, if any (spec §4.9 describes the
	// post-order shape of the overall traversal).
	Apply() error

	// HostCallback handles a request frame arriving from a child
	// (spec's host_callback(cmd, rvf)).
	HostCallback(f rvf.Frame) error

	// RespHandler handles a response frame arriving from the parent.
	RespHandler(f rvf.Frame)
}

// Lengthed is satisfied by any node that has a fixed bit width — leaves,
// and anything a network node can hold as a segment contributor.
type Lengthed interface {
	Length() int
}
