// Package rvf defines the request/response value frame carried along every
// AccessInterface edge in the scan-network tree, and the fixed set of wire
// command names nodes exchange.
package rvf

import "github.com/bradfordvt/P2654Model/pkg/bitvector"

// Command is one of the fixed wire-command strings exchanged between nodes.
type Command string

const (
	// Parallel side.
	Write     Command = "WRITE"
	Read      Command = "READ"
	WriteRead Command = "WRITE_READ"
	Address   Command = "ADDRESS"
	IsActive  Command = "ISACTIVE"

	// Serial side, IJTAG.
	Scan    Command = "SCAN"
	CapScan Command = "CAPSCAN"

	// Serial side, JTAG.
	Sir   Command = "SIR"
	SirNC Command = "SIRNC"
	Sdr   Command = "SDR"
	SdrNC Command = "SDRNC"

	// Diagnostic.
	ListCB Command = "LISTCB"
)

// Frame is the {uid, command, payload} triple passed along an
// AccessInterface in either direction.
type Frame struct {
	UID     int
	Command Command
	Payload bitvector.Value
}

// New builds a Frame. Diagnostic commands such as ListCB may carry a
// zero-value Payload; callers that need a payload-carrying frame should
// pass a concrete bitvector.Value.
func New(uid int, cmd Command, payload bitvector.Value) Frame {
	return Frame{UID: uid, Command: cmd, Payload: payload}
}
