package assembly

import (
	"sync"
	"sync/atomic"

	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// base carries the fields every node variant shares (spec §3). Concrete
// node types embed it and add whatever kind-specific state they need.
//
// Child→parent is a plain interface value (child.base.parentEdge), not an
// owning pointer back up the tree — Topology owns the tree top-down, so
// there is no ownership cycle to defeat garbage collection (spec §9
// "Cyclic ownership").
type base struct {
	mu sync.Mutex

	uid     int
	name    string
	kind    Kind
	visible bool

	tracker PendingTracker
	stop    *link.Stop

	parentEdge *link.Interface
	children   []Node
	childEdges []*link.Interface

	pending      bool
	requestCount int32
	pathState    PathState
}

func newBase(uid int, name string, kind Kind, visible bool, tracker PendingTracker, stop *link.Stop) base {
	return base{
		uid:       uid,
		name:      name,
		kind:      kind,
		visible:   visible,
		tracker:   tracker,
		stop:      stop,
		pathState: Inactive,
	}
}

func (b *base) UID() int        { return b.uid }
func (b *base) Name() string    { return b.name }
func (b *base) Kind() Kind      { return b.kind }
func (b *base) Visible() bool   { return b.visible }
func (b *base) Children() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Node, len(b.children))
	copy(out, b.children)
	return out
}

func (b *base) PathState() PathState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pathState
}

func (b *base) SetPathState(s PathState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pathState = s
}

// wireable is implemented by base (and thus promoted to every concrete
// node type) so AttachChild can wire an edge without knowing the concrete
// type on either end.
type wireable interface {
	setParentEdge(*link.Interface)
	addChildEdge(Node, *link.Interface)
}

func (b *base) setParentEdge(e *link.Interface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parentEdge = e
}

func (b *base) addChildEdge(child Node, e *link.Interface) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children = append(b.children, child)
	b.childEdges = append(b.childEdges, e)
}

func (b *base) edgeFor(uid int) *link.Interface {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.children {
		if c.UID() == uid {
			return b.childEdges[i]
		}
	}
	return nil
}

func (b *base) indexOf(uid int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.children {
		if c.UID() == uid {
			return i
		}
	}
	return -1
}

// request sends a frame upward toward the parent, the node's equivalent of
// client_interface.request (spec §3). Root nodes (JTAGControllerAssembly)
// have no parentEdge and never call this.
func (b *base) request(f rvf.Frame) error {
	if b.parentEdge == nil {
		return modelerr.New("assembly: %s %s has no parent to request against", b.kind, b.name)
	}
	b.parentEdge.Request(f)
	atomic.AddInt32(&b.requestCount, 1)
	return nil
}

// completeRequest decrements the outstanding-request counter, clamped at
// zero (spec §7 "request_count accounting must be tolerant of error
// paths").
func (b *base) completeRequest() {
	for {
		cur := atomic.LoadInt32(&b.requestCount)
		if cur <= 0 {
			atomic.StoreInt32(&b.requestCount, 0)
			return
		}
		if atomic.CompareAndSwapInt32(&b.requestCount, cur, cur-1) {
			return
		}
	}
}

// AttachChild wires parent and child together over a fresh edge: child
// requests travel up to parent.HostCallback, parent responses travel down
// to child.RespHandler (spec §3's client_interface / host_interface pair,
// modeled here as one shared link.Interface per edge rather than two
// separately named fields).
func AttachChild(parent, child Node, stop *link.Stop) {
	edge := link.New(stop)
	edge.SetRequestCallback(func(f rvf.Frame) {
		_ = parent.HostCallback(f)
	})
	edge.SetResponseCallback(func(f rvf.Frame) {
		child.RespHandler(f)
	})
	child.(wireable).setParentEdge(edge)
	parent.(wireable).addChildEdge(child, edge)
	edge.Start()
}
