package assembly

import (
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// TAP has exactly two children, in order: the instruction register and the
// DR-selector mux (spec §4.5).
type TAP struct {
	base

	desc *description.TAP
	ir   Node
	dr   Node

	pendingCmd     rvf.Command
	pendingPayload bitvector.Value
}

// NewTAP constructs a TAP over its IR child and DR-selector mux child and
// wires both as children.
func NewTAP(uid int, desc *description.TAP, ir, dr Node, tracker PendingTracker, stop *link.Stop) *TAP {
	t := &TAP{
		base: newBase(uid, desc.Name, KindTAP, true, tracker, stop),
		desc: desc,
		ir:   ir,
		dr:   dr,
	}
	AttachChild(t, ir, stop)
	AttachChild(t, dr, stop)
	return t
}

// HostCallback disambiguates IR vs. DR scan requests by which child sent
// them and maps SCAN/CAPSCAN to SIRNC/SIR or SDRNC/SDR (spec §4.5).
func (t *TAP) HostCallback(f rvf.Frame) error {
	isIR := f.UID == t.ir.UID()
	var cmd rvf.Command
	switch {
	case isIR && f.Command == rvf.CapScan:
		cmd = rvf.Sir
	case isIR && f.Command == rvf.Scan:
		cmd = rvf.SirNC
	case !isIR && f.Command == rvf.CapScan:
		cmd = rvf.Sdr
	case !isIR && f.Command == rvf.Scan:
		cmd = rvf.SdrNC
	default:
		return modelerr.New("assembly: tap %s: unexpected command %s from uid %d", t.name, f.Command, f.UID)
	}
	t.mu.Lock()
	t.pendingCmd = cmd
	t.pendingPayload = f.Payload
	t.pending = true
	t.mu.Unlock()
	t.tracker.MarkPending()
	return nil
}

// Apply forwards the pending IR or DR scan upward.
func (t *TAP) Apply() error {
	for _, c := range t.Children() {
		if err := c.Apply(); err != nil {
			return err
		}
	}
	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return nil
	}
	cmd, payload := t.pendingCmd, t.pendingPayload
	t.pending = false
	t.mu.Unlock()
	return t.request(rvf.New(t.uid, cmd, payload))
}

// RespHandler maps a controller response back to the originating child:
// SIR/SIRNC to the IR child as CAPSCAN/SCAN, SDR/SDRNC to the DR child as
// CAPSCAN/SCAN (spec §4.5).
func (t *TAP) RespHandler(f rvf.Frame) {
	t.completeRequest()
	t.tracker.ClearPending()

	var target Node
	var outCmd rvf.Command
	switch f.Command {
	case rvf.Sir:
		target, outCmd = t.ir, rvf.CapScan
	case rvf.SirNC:
		target, outCmd = t.ir, rvf.Scan
	case rvf.Sdr:
		target, outCmd = t.dr, rvf.CapScan
	case rvf.SdrNC:
		target, outCmd = t.dr, rvf.Scan
	default:
		return
	}
	edge := t.edgeFor(target.UID())
	if edge == nil {
		return
	}
	edge.Response(rvf.New(target.UID(), outCmd, f.Payload))
}
