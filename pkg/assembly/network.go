package assembly

import (
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// networkChild tags each child with its role: for a JTAGNetwork, whether
// it belongs to the IR or DR side, used to derive data_mode (spec §4.4).
// IJTAGNetwork ignores the tag since it has no IR/DR distinction.
type networkChild struct {
	node Node
	isIR bool
}

// Network implements JTAGNetwork and IJTAGNetwork: an ordered chain of
// sub-registers whose contributions are concatenated into one physical
// scan payload (spec §4.4).
type Network struct {
	base

	desc  *description.Network
	ijtag bool
	kids  []networkChild

	segments    []bitvector.Value
	cached      bool
	capture     bool
	dataMode    bool
	dataModeSet bool
	pendingAny  bool
}

// NewNetwork constructs a JTAGNetwork (ijtag=false) or IJTAGNetwork
// (ijtag=true) with no children yet; use AddChild to append each
// sub-register in order.
func NewNetwork(uid int, desc *description.Network, ijtag bool, tracker PendingTracker, stop *link.Stop) *Network {
	kind := KindJTAGNetwork
	if ijtag {
		kind = KindIJTAGNetwork
	}
	return &Network{
		// JTAGNetwork/IJTAGNetwork are transparent path segments
		// (JTAGNetwork.py/IJTAGNetwork.py both set visible=False), so a
		// dotted path walks straight through to their children.
		base:  newBase(uid, desc.Name, kind, false, tracker, stop),
		desc:  desc,
		ijtag: ijtag,
	}
}

// AddChild appends child as the network's next segment in order. isIR is
// ignored for IJTAGNetwork.
func (n *Network) AddChild(child Node, isIR bool, stop *link.Stop) {
	n.mu.Lock()
	n.kids = append(n.kids, networkChild{node: child, isIR: isIR})
	n.cached = false
	n.mu.Unlock()
	AttachChild(n, child, stop)
}

func (n *Network) childMeta(uid int) (networkChild, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, k := range n.kids {
		if k.node.UID() == uid {
			return k, i
		}
	}
	return networkChild{}, -1
}

// HostCallback stores a child's contribution into the cached segments
// array and derives data_mode from which side (IR/DR) the child belongs
// to, failing if two sides disagree within one cycle (spec §4.4).
func (n *Network) HostCallback(f rvf.Frame) error {
	meta, idx := n.childMeta(f.UID)
	if idx < 0 {
		return modelerr.New("assembly: network %s: unknown child uid %d", n.name, f.UID)
	}

	n.mu.Lock()
	if !n.cached || len(n.segments) != len(n.kids) {
		n.segments = make([]bitvector.Value, len(n.kids))
		for i, k := range n.kids {
			if l, ok := k.node.(Lengthed); ok {
				n.segments[i] = bitvector.New(l.Length())
			}
		}
		n.cached = true
	}
	n.segments[idx] = f.Payload

	capture := f.Command == rvf.Read || f.Command == rvf.WriteRead || f.Command == rvf.CapScan
	if capture {
		n.capture = true
	}
	if !n.ijtag {
		mode := !meta.isIR // false = IR, true = DR
		if n.dataModeSet && n.dataMode != mode {
			n.mu.Unlock()
			return modelerr.New("assembly: network %s: conflicting IR/DR scan modes in one cycle", n.name)
		}
		n.dataMode = mode
		n.dataModeSet = true
	}
	// One upward request (and so one response) per cycle, however many
	// children contribute to it: mark pending only for the first.
	first := !n.pendingAny
	n.pendingAny = true
	n.mu.Unlock()
	if first {
		n.tracker.MarkPending()
	}
	return nil
}

// Apply concatenates the cached segments and emits one scan request
// (spec §4.4 "On apply").
func (n *Network) Apply() error {
	for _, k := range n.Children() {
		if err := k.Apply(); err != nil {
			return err
		}
	}

	n.mu.Lock()
	if !n.pendingAny {
		n.mu.Unlock()
		return nil
	}
	parts := make([]bitvector.Value, len(n.segments))
	copy(parts, n.segments)
	capture, dataMode, ijtag := n.capture, n.dataMode, n.ijtag
	n.pendingAny = false
	n.capture = false
	n.dataModeSet = false
	n.mu.Unlock()

	payload := bitvector.Concat(parts...)

	var cmd rvf.Command
	switch {
	case ijtag && capture:
		cmd = rvf.CapScan
	case ijtag:
		cmd = rvf.Scan
	case dataMode && capture:
		cmd = rvf.Sdr
	case dataMode:
		cmd = rvf.SdrNC
	case capture:
		cmd = rvf.Sir
	default:
		cmd = rvf.SirNC
	}
	return n.request(rvf.New(n.uid, cmd, payload))
}

// RespHandler slices the returned payload back into each child's segment,
// in the same order the segments were concatenated (spec §4.4 "On
// response"; segment 0 occupies the low-order bits per pkg/bitvector's
// Concat convention).
func (n *Network) RespHandler(f rvf.Frame) {
	n.completeRequest()
	n.tracker.ClearPending()

	n.mu.Lock()
	kids := append([]networkChild(nil), n.kids...)
	lengths := make([]int, len(n.segments))
	for i, s := range n.segments {
		lengths[i] = s.Len()
	}
	n.mu.Unlock()

	capture := f.Command == rvf.Sir || f.Command == rvf.Sdr || f.Command == rvf.CapScan
	childCmd := rvf.Write
	if capture {
		childCmd = rvf.Read
	}

	start := 0
	for i, k := range kids {
		length := lengths[i]
		end := start + length
		seg, err := f.Payload.Slice(start, end)
		start = end
		if err != nil {
			continue
		}
		edge := n.edgeFor(k.node.UID())
		if edge == nil {
			continue
		}
		edge.Response(rvf.New(k.node.UID(), childCmd, seg))
	}
}
