// Package topology owns the scan-network tree: it hands out unique node
// ids, builds each concrete node kind with its wiring already in place,
// and resolves dotted path strings to nodes (and back), transparently
// skipping invisible linking nodes (spec §4.8), grounded on
// original_source/topology/Topology.py. The source represents siblings
// with a depth()/breadth() linked list; this module uses the child
// slices pkg/assembly already maintains instead, which is functionally
// equivalent and needs no separate traversal machinery.
package topology

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/bradfordvt/P2654Model/pkg/assembly"
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/driver"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
)

// discardLogger is the default Topology.Logger: library code stays quiet
// unless a caller opts in (spec's ambient-stack "library stays quiet, CLI
// is chatty" convention, matching the teacher's verbose-flag-gated
// fmt.Printf in cmd/jtag rather than an always-on library logger).
var discardLogger = log.New(io.Discard, "", 0)

// Topology owns the tree's root, a running uid counter, and a registry of
// every node created through it, used for O(1) uid lookup in place of the
// source's full-tree DFS in getAssembly_r.
type Topology struct {
	mu      sync.Mutex
	nextUID int
	root    assembly.Node
	nodes   map[int]assembly.Node

	tracker assembly.PendingTracker
	stop    *link.Stop

	// Logger receives one line per node defined, if set; path resolution
	// does not log. Defaults to a discarding logger so a Topology never prints
	// unless a caller opts in via SetLogger.
	Logger *log.Logger
}

// New creates an empty Topology. tracker is injected into every node this
// Topology constructs (spec §9 "Globals" — the scheduler implements
// PendingTracker; this package never imports it, avoiding an import
// cycle). stop is the shared cancellation token for every wired edge.
func New(tracker assembly.PendingTracker, stop *link.Stop) *Topology {
	return &Topology{
		nodes:   make(map[int]assembly.Node),
		tracker: tracker,
		stop:    stop,
		Logger:  discardLogger,
	}
}

// SetLogger installs l as the Topology's diagnostic logger. Passing nil
// restores the default discarding logger.
func (t *Topology) SetLogger(l *log.Logger) {
	if l == nil {
		l = discardLogger
	}
	t.Logger = l
}

func (t *Topology) logf(format string, args ...any) {
	if t.Logger == nil {
		return
	}
	t.Logger.Output(2, fmt.Sprintf(format, args...))
}

func (t *Topology) allocUID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	uid := t.nextUID
	t.nextUID++
	return uid
}

func (t *Topology) register(n assembly.Node) {
	t.mu.Lock()
	t.nodes[n.UID()] = n
	t.mu.Unlock()
	t.logf("topology: defined %s %q uid=%d", n.Kind(), n.Name(), n.UID())
}

// Root returns the tree's root node (the single JTAGControllerAssembly
// defined so far), or nil if none has been defined yet.
func (t *Topology) Root() assembly.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root
}

// GetAssembly looks up a node by uid (spec §4.8 "getAssembly").
func (t *Topology) GetAssembly(uid int) (assembly.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[uid]
	return n, ok
}

// DefineScanRegister allocates and registers a ScanRegister leaf
// (original_source/topology/Topology.py's defineScanRegister).
func (t *Topology) DefineScanRegister(name string, dir description.Direction, entityName string, length int, safeValue bitvector.Value) (*assembly.Leaf, error) {
	desc, err := description.NewRegister(name, entityName, dir, length, safeValue)
	if err != nil {
		return nil, err
	}
	leaf, err := assembly.NewLeaf(t.allocUID(), desc, assembly.KindScanRegister, t.tracker, t.stop)
	if err != nil {
		return nil, err
	}
	t.register(leaf)
	return leaf, nil
}

// DefineDataRegister allocates and registers a DataRegister leaf. The
// source never names a defineDataRegister factory explicitly, but
// DataRegister.py is a full peer of ScanRegister.py, so this factory
// follows the same shape.
func (t *Topology) DefineDataRegister(name string, dir description.Direction, entityName string, length int, safeValue bitvector.Value) (*assembly.Leaf, error) {
	desc, err := description.NewRegister(name, entityName, dir, length, safeValue)
	if err != nil {
		return nil, err
	}
	leaf, err := assembly.NewLeaf(t.allocUID(), desc, assembly.KindDataRegister, t.tracker, t.stop)
	if err != nil {
		return nil, err
	}
	t.register(leaf)
	return leaf, nil
}

// DefineScanMux allocates and registers a ScanMux over keyreg and the
// given selector table, then wires every entry's target beneath it as a
// child (original_source's defineScanMux appends each mapped register
// via mux.append_assembly in the same call).
func (t *Topology) DefineScanMux(name string, keyreg *assembly.Leaf, entries []description.MuxEntry) (*assembly.Mux, error) {
	return t.defineMux(name, assembly.KindScanMux, keyreg, entries)
}

// DefineDataMux is DefineScanMux's DataMux-kind peer.
func (t *Topology) DefineDataMux(name string, keyreg *assembly.Leaf, entries []description.MuxEntry) (*assembly.Mux, error) {
	return t.defineMux(name, assembly.KindDataMux, keyreg, entries)
}

func (t *Topology) defineMux(name string, kind assembly.Kind, keyreg *assembly.Leaf, entries []description.MuxEntry) (*assembly.Mux, error) {
	desc, err := description.NewMux(name, entries)
	if err != nil {
		return nil, err
	}
	mux, err := assembly.NewMux(t.allocUID(), name, kind, desc, keyreg, t.tracker, t.stop)
	if err != nil {
		return nil, err
	}
	t.register(mux)
	seen := make(map[int]bool)
	for _, e := range entries {
		if seen[e.Target.UID()] {
			continue
		}
		seen[e.Target.UID()] = true
		target, ok := e.Target.(assembly.Node)
		if !ok {
			return nil, modelerr.New("topology: mux %s: entry target is not an assembly node", name)
		}
		assembly.AttachChild(mux, target, t.stop)
	}
	return mux, nil
}

// DefineTAP allocates and registers a TAP over an already-defined IR leaf
// and DR-selector mux (original_source's defineTAP).
func (t *Topology) DefineTAP(name string, ir, dr assembly.Node) (*assembly.TAP, error) {
	if ir == nil || dr == nil {
		return nil, modelerr.New("topology: TAP %s: ir and dr must both be defined", name)
	}
	desc := description.NewTAP(name)
	tap := assembly.NewTAP(t.allocUID(), desc, ir, dr, t.tracker, t.stop)
	t.register(tap)
	return tap, nil
}

// DefineJTAGNetwork allocates and registers an empty JTAGNetwork; call
// AddNetworkSegment to append each sub-register in scan order.
func (t *Topology) DefineJTAGNetwork(name string) *assembly.Network {
	desc := description.NewNetwork(name)
	net := assembly.NewNetwork(t.allocUID(), desc, false, t.tracker, t.stop)
	t.register(net)
	return net
}

// DefineIJTAGNetwork is DefineJTAGNetwork's IJTAG-side peer.
func (t *Topology) DefineIJTAGNetwork(name string) *assembly.Network {
	desc := description.NewNetwork(name)
	net := assembly.NewNetwork(t.allocUID(), desc, true, t.tracker, t.stop)
	t.register(net)
	return net
}

// AddNetworkSegment appends child as net's next scan segment.
func (t *Topology) AddNetworkSegment(net *assembly.Network, child assembly.Node, isIR bool) {
	net.AddChild(child, isIR, t.stop)
}

// DefineJTAGControllerAssembly allocates and registers the tree's root
// node (original_source's defineJTAGControllerAssembly). The first
// controller defined becomes Root(); a topology is only ever expected to
// have one.
func (t *Topology) DefineJTAGControllerAssembly(name string, drv driver.Driver) *assembly.Controller {
	ctrl := assembly.NewController(t.allocUID(), name, drv, t.tracker, t.stop)
	t.register(ctrl)
	t.mu.Lock()
	if t.root == nil {
		t.root = ctrl
	}
	t.mu.Unlock()
	return ctrl
}

// AddControllerChild wires child beneath the controller (typically a
// single TAP).
func (t *Topology) AddControllerChild(ctrl *assembly.Controller, child assembly.Node) {
	ctrl.AddChild(child, t.stop)
}

// DefinePortalRegister allocates and registers a PortalRegister guarding
// address.
func (t *Topology) DefinePortalRegister(name string, address bitvector.Value) *assembly.Portal {
	desc := description.NewPortal(name, address)
	portal := assembly.NewPortal(t.allocUID(), desc, t.tracker, t.stop)
	t.register(portal)
	return portal
}

// AddPortalChild wires child beneath the portal (a portal has exactly one).
func (t *Topology) AddPortalChild(portal *assembly.Portal, child assembly.Node) {
	portal.AddChild(child, t.stop)
}

// DefineStub allocates and registers an I2CClient or ParallelToSerial
// placeholder node.
func (t *Topology) DefineStub(name string, kind assembly.Kind) (*assembly.Stub, error) {
	stub, err := assembly.NewStub(t.allocUID(), name, kind, t.tracker, t.stop)
	if err != nil {
		return nil, err
	}
	t.register(stub)
	return stub, nil
}

// GetAssemblyUID resolves a dotted path to a uid (spec §4.8). The first
// token must name the root; each subsequent token matches a visible
// child's name, and invisible children are walked through transparently
// without consuming a token (original_source's getAssemblyUID_r).
func (t *Topology) GetAssemblyUID(path string) (int, error) {
	root := t.Root()
	if root == nil {
		return 0, modelerr.New("topology: no root defined")
	}
	tokens := strings.Split(path, ".")
	if len(tokens) == 0 || tokens[0] != root.Name() {
		return 0, modelerr.New("topology: path %q does not start at root %q", path, root.Name())
	}
	if len(tokens) == 1 {
		return root.UID(), nil
	}
	n, err := resolveChildren(root, tokens[1:])
	if err != nil {
		return 0, err
	}
	return n.UID(), nil
}

func resolveChildren(node assembly.Node, tokens []string) (assembly.Node, error) {
	for _, c := range node.Children() {
		if !c.Visible() {
			if n, err := resolveChildren(c, tokens); err == nil {
				return n, nil
			}
			continue
		}
		if c.Name() == tokens[0] {
			if len(tokens) == 1 {
				return c, nil
			}
			return resolveChildren(c, tokens[1:])
		}
	}
	return nil, modelerr.New("topology: path token %q not found", tokens[0])
}

// GetAssemblyPath reverse-walks the tree to find uid, recording names
// only for visible nodes along the way (spec §4.8 "getAssemblyPath";
// original_source's _findpath_lifo).
func (t *Topology) GetAssemblyPath(uid int) (string, error) {
	root := t.Root()
	if root == nil {
		return "", modelerr.New("topology: no root defined")
	}
	names, ok := findPath(root, uid)
	if !ok {
		return "", modelerr.New("topology: uid %d not found", uid)
	}
	return strings.Join(names, "."), nil
}

// Dump writes a postorder diagnostic listing of the tree to w: one line
// per node naming its kind, name, uid, and supported commands (spec §12
// "show()/dump() diagnostic tree printers"; original_source's
// _postorder_print dispatches by isinstance chain, this dispatches by
// Kind per the REDESIGN note in spec §9).
func (t *Topology) Dump(w io.Writer) {
	root := t.Root()
	if root == nil {
		fmt.Fprintln(w, "topology: empty")
		return
	}
	dumpNode(w, root, 0)
}

func dumpNode(w io.Writer, n assembly.Node, depth int) {
	for _, c := range n.Children() {
		dumpNode(w, c, depth+1)
	}
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s[%s(%s)]\tuid=%d\tvisible=%t\tcommands=%s\n",
		indent, n.Kind(), n.Name(), n.UID(), n.Visible(), assembly.ListCB(n.Kind()))
}

func findPath(node assembly.Node, uid int) ([]string, bool) {
	if node.UID() == uid {
		if node.Visible() {
			return []string{node.Name()}, true
		}
		return []string{}, true
	}
	for _, c := range node.Children() {
		if sub, ok := findPath(c, uid); ok {
			if node.Visible() {
				return append([]string{node.Name()}, sub...), true
			}
			return sub, true
		}
	}
	return nil, false
}
