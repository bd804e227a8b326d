package assembly

import (
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// Leaf implements DataRegister and ScanRegister (spec §4.2). Both kinds
// share this type; Kind() reports which one a given instance is, since the
// source's two classes differ only in which command names they synthesize.
type Leaf struct {
	base

	desc *description.Register

	value     bitvector.Value
	readValue *bitvector.Value
	capture   bool
	update    bool
}

// NewLeaf constructs a DataRegister or ScanRegister leaf. kind must be
// KindDataRegister or KindScanRegister.
func NewLeaf(uid int, desc *description.Register, kind Kind, tracker PendingTracker, stop *link.Stop) (*Leaf, error) {
	if !kind.IsLeaf() {
		return nil, modelerr.New("assembly: NewLeaf: kind %s is not a leaf kind", kind)
	}
	safe := desc.SafeValue
	return &Leaf{
		base:  newBase(uid, desc.Name, kind, true, tracker, stop),
		desc:  desc,
		value: safe,
	}, nil
}

// Description returns the leaf's immutable metadata.
func (l *Leaf) Description() *description.Register {
	return l.desc
}

// Length implements the Lengthed capability network nodes rely on.
func (l *Leaf) Length() int {
	return l.desc.Length
}

// CurrentValue returns the value most recently written, independent of
// whether it has been scanned out yet. Mux nodes use this to resolve which
// child is currently selected by a key register's contents.
func (l *Leaf) CurrentValue() bitvector.Value {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Write sets the register's value and marks it pending for a plain write
// (no capture) on the next apply cycle.
func (l *Leaf) Write(v bitvector.Value) error {
	return l.stage(v, false)
}

// WriteRead sets the register's value and marks it pending for a
// write-with-capture on the next apply cycle.
func (l *Leaf) WriteRead(v bitvector.Value) error {
	return l.stage(v, true)
}

func (l *Leaf) stage(v bitvector.Value, capture bool) error {
	if l.desc.Direction == description.ReadOnly {
		return modelerr.New("assembly: %s: write to READ_ONLY register", l.name)
	}
	if v.Len() != l.desc.Length {
		return modelerr.New("assembly: %s: value length %d does not match register length %d", l.name, v.Len(), l.desc.Length)
	}
	l.mu.Lock()
	l.value = v
	l.readValue = nil
	l.capture = capture
	l.update = true
	l.pending = true
	l.mu.Unlock()
	l.tracker.MarkPending()
	return nil
}

// Read returns the most recently captured value. It errors if no capture
// has completed yet (spec §4.2, §8 "not synchronized").
func (l *Leaf) Read() (bitvector.Value, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.desc.Direction == description.WriteOnly {
		return bitvector.Value{}, modelerr.New("assembly: %s: read from WRITE_ONLY register", l.name)
	}
	if l.readValue == nil {
		return bitvector.Value{}, modelerr.New("assembly: %s: not synchronized", l.name)
	}
	return *l.readValue, nil
}

// Apply synthesizes and emits one request if the register has pending
// work, per the command table in spec §4.2.
func (l *Leaf) Apply() error {
	l.mu.Lock()
	if !l.pending {
		l.mu.Unlock()
		return nil
	}
	capture, update, value := l.capture, l.update, l.value
	l.pending = false
	l.mu.Unlock()

	var cmd rvf.Command
	switch l.kind {
	case KindScanRegister:
		if capture {
			cmd = rvf.CapScan
		} else {
			cmd = rvf.Scan
		}
	default: // KindDataRegister
		switch {
		case update && capture:
			cmd = rvf.WriteRead
		case update:
			cmd = rvf.Write
		case capture:
			cmd = rvf.Read
		default:
			return nil
		}
	}
	return l.request(rvf.New(l.uid, cmd, value))
}

// HostCallback is never invoked on a leaf: leaves have no children.
func (l *Leaf) HostCallback(f rvf.Frame) error {
	return modelerr.New("assembly: %s: leaf has no children to host a request from", l.name)
}

// RespHandler applies the response table from spec §4.2.
func (l *Leaf) RespHandler(f rvf.Frame) {
	l.mu.Lock()
	switch f.Command {
	case rvf.Write, rvf.Scan:
		l.readValue = nil
	case rvf.Read, rvf.WriteRead, rvf.CapScan:
		v := f.Payload
		l.readValue = &v
	}
	l.mu.Unlock()
	l.completeRequest()
	l.tracker.ClearPending()
}
