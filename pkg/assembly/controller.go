package assembly

import (
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/driver"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// Controller implements JTAGControllerAssembly: the tree's root, which
// adapts SIR/SIRNC/SDR/SDRNC requests to an external physical (or
// simulated) driver (spec §4.6).
type Controller struct {
	base

	drv driver.Driver

	pendingCmd     rvf.Command
	pendingPayload bitvector.Value
}

// NewController constructs a root JTAGControllerAssembly bound to drv. It
// has no parent: its base.parentEdge is left nil, and Apply never calls
// request on it.
func NewController(uid int, name string, drv driver.Driver, tracker PendingTracker, stop *link.Stop) *Controller {
	return &Controller{
		base: newBase(uid, name, KindJTAGControllerAssembly, true, tracker, stop),
		drv:  drv,
	}
}

// AddChild wires child beneath this controller. More than one child may be
// wired, but Apply sends every response to the first child wired, so only
// the first child's requests are answered; the seed topology wires exactly
// one (a TAP).
func (c *Controller) AddChild(child Node, stop *link.Stop) {
	AttachChild(c, child, stop)
}

// HostCallback latches the pending scan command from below. The controller
// has no parent and never receives a response of its own, so unlike every
// other node kind it does not participate in pending-leaf accounting: that
// balance is kept entirely between the originating leaf and its TAP.
func (c *Controller) HostCallback(f rvf.Frame) error {
	c.mu.Lock()
	c.pendingCmd = f.Command
	c.pendingPayload = f.Payload
	c.pending = true
	c.mu.Unlock()
	return nil
}

// Apply dispatches the pending command to the physical driver and
// responds with the same command name back down (spec §4.6).
func (c *Controller) Apply() error {
	for _, child := range c.Children() {
		if err := child.Apply(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if !c.pending {
		c.mu.Unlock()
		return nil
	}
	cmd, payload := c.pendingCmd, c.pendingPayload
	c.pending = false
	c.mu.Unlock()

	var tdoHex string
	var err error
	capture := false
	switch cmd {
	case rvf.Sir:
		capture = true
		tdoHex, err = c.drv.ScanIR(payload.Len(), payload.Hex())
	case rvf.SirNC:
		_, err = c.drv.ScanIR(payload.Len(), payload.Hex())
	case rvf.Sdr:
		capture = true
		tdoHex, err = c.drv.ScanDR(payload.Len(), payload.Hex())
	case rvf.SdrNC:
		_, err = c.drv.ScanDR(payload.Len(), payload.Hex())
	default:
		return modelerr.New("assembly: controller %s: unknown command %s", c.name, cmd)
	}
	if err != nil {
		return err
	}

	var respPayload bitvector.Value
	if capture {
		respPayload, err = bitvector.FromHex(payload.Len(), tdoHex)
		if err != nil {
			return err
		}
	} else {
		respPayload = bitvector.New(payload.Len())
	}

	children := c.Children()
	if len(children) == 0 {
		return nil
	}
	child := children[0]
	edge := c.edgeFor(child.UID())
	if edge == nil {
		return modelerr.New("assembly: controller %s: no edge for child uid %d", c.name, child.UID())
	}
	edge.Response(rvf.New(child.UID(), cmd, respPayload))
	return nil
}

// RespHandler is never called: a controller has no parent to receive a
// response from.
func (c *Controller) RespHandler(f rvf.Frame) {}
