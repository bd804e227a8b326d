package assembly

import (
	"sync/atomic"

	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// Mux implements both DataMux and ScanMux (spec §4.3). The source kept two
// class names (DataMuxDescription.py and ScanMuxDescription.py) over an
// identical shape, and original_source/ never defines a ScanMux.py
// distinct from DataMux.py's behavior — this module keeps one type for
// both, differentiated only by Kind() (see DESIGN.md).
type Mux struct {
	base

	desc   *description.Mux
	keyreg *Leaf

	selectedSeg  description.Addressable
	pendingCount int

	value   bitvector.Value
	capture bool
	update  bool
}

// NewMux constructs a DataMux or ScanMux over the given key register and
// selector table. kind must be KindDataMux or KindScanMux.
func NewMux(uid int, name string, kind Kind, desc *description.Mux, keyreg *Leaf, tracker PendingTracker, stop *link.Stop) (*Mux, error) {
	if kind != KindDataMux && kind != KindScanMux {
		return nil, modelerr.New("assembly: NewMux: kind %s is not a mux kind", kind)
	}
	return &Mux{
		// Mux nodes are transparent path segments, matching DataMux.py's
		// visible=False (spec §4.8 "invisible nodes transparent to path
		// resolution"); the source never defines a ScanMux with different
		// visibility.
		base:   newBase(uid, name, kind, false, tracker, stop),
		desc:   desc,
		keyreg: keyreg,
	}, nil
}

// Description returns the mux's immutable selector table.
func (m *Mux) Description() *description.Mux {
	return m.desc
}

// Length reports the key register's declared width. It does not report
// the width of the currently selected child; network nodes only need this
// when a mux is used as a direct segment contributor, which the seed
// topology never does.
func (m *Mux) Length() int {
	return m.keyreg.Length()
}

// selectFor implements the source's _select(child_uid): write a corrective
// code into the key register only if the requested child is not already
// selected (spec §4.3 "Selector inference").
func (m *Mux) selectFor(uid int) error {
	m.mu.Lock()
	already := m.selectedSeg != nil && m.selectedSeg.UID() == uid
	m.mu.Unlock()
	if already {
		return nil
	}
	entry, ok := m.desc.FirstMatch(uid)
	if !ok {
		return modelerr.New("assembly: mux %s: unable to locate selector for uid %d", m.name, uid)
	}
	if err := m.keyreg.Write(entry.Code); err != nil {
		return err
	}
	m.mu.Lock()
	m.selectedSeg = entry.Target
	m.mu.Unlock()
	return nil
}

// resolveSelected keeps selectedSeg in sync with the key register's actual
// current value, falling back to the table's default code when the
// current value has no entry (spec §4.3 step 2).
func (m *Mux) resolveSelected() error {
	kv := m.keyreg.CurrentValue()
	entry, ok := m.desc.Lookup(kv)
	if !ok {
		def := m.desc.DefaultCode()
		if err := m.keyreg.Write(def); err != nil {
			return err
		}
		entry, ok = m.desc.Lookup(def)
		if !ok {
			return modelerr.New("assembly: mux %s: default code has no table entry", m.name)
		}
	}
	m.mu.Lock()
	m.selectedSeg = entry.Target
	m.mu.Unlock()
	return nil
}

// HostCallback handles WRITE/READ/WRITE_READ (DataMux children) or
// SCAN/CAPSCAN (ScanMux children), plus ADDRESS/ISACTIVE, arriving from a
// child (spec §4.3 "Host callbacks"). A ScanMux's children are
// ScanRegister leaves (or other scan-side nodes), which synthesize
// SCAN/CAPSCAN rather than the parallel-side command names; a DataMux's
// children use the parallel-side names instead.
func (m *Mux) HostCallback(f rvf.Frame) error {
	switch f.Command {
	case rvf.Write, rvf.Read, rvf.WriteRead, rvf.Scan, rvf.CapScan:
		if err := m.selectFor(f.UID); err != nil {
			return err
		}
		m.mu.Lock()
		m.value = f.Payload
		m.capture = f.Command == rvf.Read || f.Command == rvf.WriteRead || f.Command == rvf.CapScan
		m.update = f.Command == rvf.Write || f.Command == rvf.WriteRead || f.Command == rvf.Scan || f.Command == rvf.CapScan
		m.pendingCount++
		m.pending = true
		m.mu.Unlock()
		m.tracker.MarkPending()
		return nil
	case rvf.Address:
		return m.hcbAddress(f)
	case rvf.IsActive:
		return m.hcbIsActive(f)
	default:
		return modelerr.New("assembly: mux %s: unknown command %s", m.name, f.Command)
	}
}

// hcbAddress writes a code directly into the key register and acknowledges
// the requester on its own edge, matching the source's hcb_address ending
// in self.host_interface.response(rvf). A PortalRegister wired beneath
// this mux blocks on its ADDRESS rendezvous forever without it. The length
// check is against keyreg.Description().Length; the source has a typo
// comparing against a field named kreg.reg_len, and there is only one
// correctly named field here (spec §9 open question 4).
func (m *Mux) hcbAddress(f rvf.Frame) error {
	if f.Payload.Len() != m.keyreg.Description().Length {
		return modelerr.New("assembly: mux %s: address length %d does not match key register length %d", m.name, f.Payload.Len(), m.keyreg.Description().Length)
	}
	if err := m.keyreg.Write(f.Payload); err != nil {
		return err
	}
	edge := m.edgeFor(f.UID)
	if edge == nil {
		return modelerr.New("assembly: mux %s: no edge for uid %d", m.name, f.UID)
	}
	edge.Response(rvf.New(f.UID, rvf.Address, f.Payload))
	return nil
}

// hcbIsActive answers whether the requesting child is currently selected,
// compared by name rather than uid, matching the source exactly.
func (m *Mux) hcbIsActive(f rvf.Frame) error {
	idx := m.indexOf(f.UID)
	if idx < 0 {
		return modelerr.New("assembly: mux %s: unknown requester uid %d", m.name, f.UID)
	}
	requester := m.Children()[idx]

	m.mu.Lock()
	selected := m.selectedSeg
	m.mu.Unlock()

	active := selected != nil && selected.Name() == requester.Name()
	var bit uint64
	if active {
		bit = 1
	}
	result, err := bitvector.FromUint64(1, bit)
	if err != nil {
		return err
	}
	edge := m.edgeFor(requester.UID())
	if edge == nil {
		return modelerr.New("assembly: mux %s: no edge for uid %d", m.name, requester.UID())
	}
	edge.Response(rvf.New(requester.UID(), rvf.IsActive, result))
	return nil
}

// Apply validates at most one competing child access this cycle,
// refreshes the current selection, and forwards an aggregated request if
// this mux itself has pending work (spec §4.3 "apply").
func (m *Mux) Apply() error {
	for _, c := range m.Children() {
		if err := c.Apply(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	count := m.pendingCount
	m.pendingCount = 0
	m.mu.Unlock()
	if count > 1 {
		return modelerr.New("assembly: mux %s: multiple competing paths detected", m.name)
	}

	if err := m.resolveSelected(); err != nil {
		return err
	}

	m.mu.Lock()
	pending := m.pending
	m.mu.Unlock()
	if !pending {
		return nil
	}

	// Hold this mux's own access back while the key register still has a
	// write staged or in flight, so the selector write reaches the device
	// before the selected child's request. selectFor stages the key write
	// before it marks the mux pending, so checking here sees that write.
	m.keyreg.mu.Lock()
	keyBusy := m.keyreg.pending || atomic.LoadInt32(&m.keyreg.requestCount) > 0
	m.keyreg.mu.Unlock()
	if keyBusy {
		return nil
	}

	m.mu.Lock()
	value, capture, update := m.value, m.capture, m.update
	m.pending = false
	m.mu.Unlock()

	var cmd rvf.Command
	switch {
	case m.kind == KindScanMux && capture:
		cmd = rvf.CapScan
	case m.kind == KindScanMux:
		cmd = rvf.Scan
	case update && capture:
		cmd = rvf.WriteRead
	case update:
		cmd = rvf.Write
	default:
		cmd = rvf.Read
	}
	return m.request(rvf.New(m.uid, cmd, value))
}

// RespHandler forwards the response payload to whichever child is
// currently selected (spec §4.3 "Response").
func (m *Mux) RespHandler(f rvf.Frame) {
	m.mu.Lock()
	target := m.selectedSeg
	m.mu.Unlock()

	m.completeRequest()
	m.tracker.ClearPending()

	if target == nil {
		return
	}
	edge := m.edgeFor(target.UID())
	if edge == nil {
		return
	}
	edge.Response(rvf.New(target.UID(), f.Command, f.Payload))
}
