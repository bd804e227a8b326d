// Package driver defines the downward contract between the scan-network
// model and the physical (or simulated) JTAG controller, and the discovery
// helpers for finding real hardware. Spec §6 treats the physical driver as
// an external collaborator exposing exactly scan_ir/scan_dr; this package
// is that collaborator's Go shape, grounded on the teacher's
// pkg/jtag.Adapter but narrowed to the two operations the model actually
// calls.
package driver

import "fmt"

// Driver is the external collaborator a JTAGControllerAssembly dispatches
// to (spec §6 "Downward driver contract"). The returned hex string must
// carry enough digits to encode bitLen bits; the model parses it back into
// a bit-vector of exactly that length.
type Driver interface {
	ScanIR(bitLen int, tdiHex string) (tdoHex string, err error)
	ScanDR(bitLen int, tdiHex string) (tdoHex string, err error)
}

// Info describes a driver's identity and capabilities, mirroring the
// teacher's AdapterInfo (pkg/jtag/adapter.go) narrowed to what this model
// exposes to the discover CLI command.
type Info struct {
	Name         string
	Vendor       string
	Model        string
	SerialNumber string
	MinFrequency int
	MaxFrequency int
}

// ErrNotImplemented mirrors the teacher's jtag.ErrNotImplemented: a backend
// that hasn't wired a particular capability returns this rather than a
// bespoke message.
var ErrNotImplemented = fmt.Errorf("driver: not implemented")
