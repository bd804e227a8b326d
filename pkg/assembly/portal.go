package assembly

import (
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// Portal implements PortalRegister: a two-phase ADDRESS-then-data
// transaction guarding a fixed bus address (spec §4.7). The ADDRESS
// round trip is rendezvoused on a channel rather than the source's
// condition variable wait taken without holding its mutex — spec §9 open
// question 2.
type Portal struct {
	base

	desc *description.Portal

	pendingCmd     rvf.Command
	pendingPayload bitvector.Value

	addressDone chan struct{}
}

// NewPortal constructs a PortalRegister guarding the address in desc.
func NewPortal(uid int, desc *description.Portal, tracker PendingTracker, stop *link.Stop) *Portal {
	return &Portal{
		base: newBase(uid, desc.Name, KindPortalRegister, true, tracker, stop),
		desc: desc,
	}
}

// AddChild wires child beneath this portal.
func (p *Portal) AddChild(child Node, stop *link.Stop) {
	AttachChild(p, child, stop)
}

// HostCallback latches a pending WRITE/READ/WRITE_READ from the child
// awaiting the portal's address-gated access.
func (p *Portal) HostCallback(f rvf.Frame) error {
	switch f.Command {
	case rvf.Write, rvf.Read, rvf.WriteRead:
		p.mu.Lock()
		p.pendingCmd = f.Command
		p.pendingPayload = f.Payload
		p.pending = true
		p.mu.Unlock()
		p.tracker.MarkPending()
		return nil
	default:
		return modelerr.New("assembly: portal %s: unexpected command %s", p.name, f.Command)
	}
}

// Apply sends ADDRESS upward, waits for its acknowledgement without
// holding the node's mutex across the wait, then sends the latched data
// request (spec §4.7).
func (p *Portal) Apply() error {
	for _, c := range p.Children() {
		if err := c.Apply(); err != nil {
			return err
		}
	}

	p.mu.Lock()
	if !p.pending {
		p.mu.Unlock()
		return nil
	}
	cmd, payload := p.pendingCmd, p.pendingPayload
	p.pending = false
	done := make(chan struct{})
	p.addressDone = done
	p.mu.Unlock()

	if err := p.request(rvf.New(p.uid, rvf.Address, p.desc.Address)); err != nil {
		return err
	}
	<-done

	return p.request(rvf.New(p.uid, cmd, payload))
}

// RespHandler consumes the ADDRESS acknowledgement internally and
// forwards the data response to the originating child.
func (p *Portal) RespHandler(f rvf.Frame) {
	if f.Command == rvf.Address {
		p.mu.Lock()
		done := p.addressDone
		p.addressDone = nil
		p.mu.Unlock()
		if done != nil {
			close(done)
		}
		return
	}

	p.completeRequest()
	p.tracker.ClearPending()

	children := p.Children()
	if len(children) == 0 {
		return
	}
	child := children[0]
	edge := p.edgeFor(child.UID())
	if edge == nil {
		return
	}
	edge.Response(rvf.New(child.UID(), f.Command, f.Payload))
}
