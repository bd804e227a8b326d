// Package description holds the immutable per-node-kind metadata the
// Python source kept in AssemblyDescription and its subclasses: register
// lengths and safe values, the ordered code→child lookup table used by mux
// nodes, and the names and fixed address carried by TAP, network, and
// portal nodes. Descriptions never change after construction
// and hold no synchronization of their own.
package description

import (
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
)

// Direction constrains which operations a register accepts (spec §3).
type Direction int

const (
	ReadOnly Direction = iota
	WriteOnly
	ReadWrite
)

func (d Direction) String() string {
	switch d {
	case ReadOnly:
		return "READ_ONLY"
	case WriteOnly:
		return "WRITE_ONLY"
	case ReadWrite:
		return "READ_WRITE"
	default:
		return "UNKNOWN"
	}
}

// Register describes a DataRegister or ScanRegister leaf: its declared bit
// length, access direction, and reset ("safe") value, grounded on
// original_source/description/DataRegisterDescription.py's validation that
// safe_value is an intbv of exactly reg_length bits.
type Register struct {
	Name       string
	EntityName string
	Direction  Direction
	Length     int
	SafeValue  bitvector.Value
}

// NewRegister validates that safeValue's length matches length before
// returning a Register description.
func NewRegister(name, entityName string, dir Direction, length int, safeValue bitvector.Value) (*Register, error) {
	if safeValue.Len() != length {
		return nil, modelerr.New("description: register %s: safe value length %d does not match declared length %d", name, safeValue.Len(), length)
	}
	return &Register{Name: name, EntityName: entityName, Direction: dir, Length: length, SafeValue: safeValue}, nil
}

// Addressable is satisfied by any assembly node that can be the target of a
// mux map entry or a path-resolution lookup. Kept minimal and decoupled
// from pkg/assembly to avoid an import cycle (the assembly package depends
// on description, not the reverse).
type Addressable interface {
	UID() int
	Name() string
}

// MuxEntry pairs one selector code with the child it activates.
type MuxEntry struct {
	Code   bitvector.Value
	Target Addressable
}

// Mux describes the ordered code→child table shared by DataMux and ScanMux
// (original_source kept only DataMuxDescription.py and
// ScanMuxDescription.py as two names over the same shape; this module
// keeps one Go type for both, per DESIGN.md).
type Mux struct {
	Name    string
	Entries []MuxEntry
}

// NewMux builds a Mux description from an ordered list of entries. Order
// matters: the first entry is the default code (spec §4.3), and
// FirstMatch scans in this same order.
func NewMux(name string, entries []MuxEntry) (*Mux, error) {
	if len(entries) == 0 {
		return nil, modelerr.New("description: mux %s: must have at least one entry", name)
	}
	return &Mux{Name: name, Entries: entries}, nil
}

// DefaultCode returns the first entry's code, used when the key register's
// current value matches no entry (spec §4.3 step 2).
func (m *Mux) DefaultCode() bitvector.Value {
	return m.Entries[0].Code
}

// Lookup finds the entry whose Code equals code.
func (m *Mux) Lookup(code bitvector.Value) (MuxEntry, bool) {
	for _, e := range m.Entries {
		if e.Code.Equal(code) {
			return e, true
		}
	}
	return MuxEntry{}, false
}

// FirstMatch returns the first entry (in table order) whose target has the
// given uid — used by selector inference to find the code that must be
// written into the key register to activate child uid (spec §4.3).
func (m *Mux) FirstMatch(uid int) (MuxEntry, bool) {
	for _, e := range m.Entries {
		if e.Target.UID() == uid {
			return e, true
		}
	}
	return MuxEntry{}, false
}

// TAP describes a TAP node. The source's TAPDescription.py carries little
// beyond a name; the two-child IR/DR-mux shape is structural and lives on
// the assembly node itself, not in its description.
type TAP struct {
	Name string
}

func NewTAP(name string) *TAP {
	return &TAP{Name: name}
}

// Network describes a JTAGNetwork/IJTAGNetwork node. Segment lengths are
// derived at runtime from the live children (spec §4.4's "segments" cache
// lives on the assembly node), so the description carries only the name.
type Network struct {
	Name string
}

func NewNetwork(name string) *Network {
	return &Network{Name: name}
}

// Portal describes a PortalRegister: the fixed bus address it emits before
// every data transaction (spec §4.7).
type Portal struct {
	Name    string
	Address bitvector.Value
}

func NewPortal(name string, address bitvector.Value) *Portal {
	return &Portal{Name: name, Address: address}
}
