package driver

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/bradfordvt/P2654Model/pkg/tapfsm"
)

// Probe abstracts a physical JTAG adapter's raw capabilities, narrowed
// from the teacher's jtag.Adapter interface (pkg/jtag/adapter.go) to what
// a Hardware driver needs: drive TMS/TDI per bit, read TDO back, and reset.
type Probe interface {
	// Shift clocks bits bits of tdi out while driving tms on each cycle,
	// returning the bits clocked in on TDO. tms and tdi are bit 0 = first
	// bit shifted.
	Shift(tms, tdi []bool) (tdo []bool, err error)
	ResetTAP() error
}

// Hardware implements Driver on top of a Probe, navigating the TAP state
// machine itself via pkg/tapfsm the way the teacher's CMSIS-DAP adapter
// navigates it via raw TMS sequences, but without that adapter's
// wire-protocol encoding (see DESIGN.md for why that layer was dropped).
type Hardware struct {
	mu    sync.Mutex
	probe Probe
	fsm   *tapfsm.Machine
}

// NewHardware wires a Probe into a Hardware driver, resetting the TAP to
// Test-Logic-Reset so the FSM and the physical controller start in sync.
func NewHardware(probe Probe) (*Hardware, error) {
	if err := probe.ResetTAP(); err != nil {
		return nil, fmt.Errorf("driver: reset TAP: %w", err)
	}
	return &Hardware{probe: probe, fsm: tapfsm.New()}, nil
}

func (h *Hardware) ScanIR(bitLen int, tdiHex string) (string, error) {
	return h.scan(tapfsm.ShiftIR, bitLen, tdiHex)
}

func (h *Hardware) ScanDR(bitLen int, tdiHex string) (string, error) {
	return h.scan(tapfsm.ShiftDR, bitLen, tdiHex)
}

func (h *Hardware) scan(target tapfsm.State, bitLen int, tdiHex string) (string, error) {
	if bitLen <= 0 {
		return "", fmt.Errorf("driver: bitLen must be positive, got %d", bitLen)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	nav, err := h.fsm.GoTo(target)
	if err != nil {
		return "", fmt.Errorf("driver: navigate to %s: %w", target, err)
	}
	if len(nav.TMS) > 0 {
		if _, err := h.probe.Shift(nav.TMS, make([]bool, len(nav.TMS))); err != nil {
			return "", fmt.Errorf("driver: navigate to %s: %w", target, err)
		}
	}

	tdi, err := hexToBits(bitLen, tdiHex)
	if err != nil {
		return "", err
	}

	// Hold TMS low for all but the last bit, which exits the shift state
	// into Exit1-IR/Exit1-DR.
	tms := make([]bool, bitLen)
	tms[bitLen-1] = true

	tdo, err := h.probe.Shift(tms, tdi)
	if err != nil {
		return "", fmt.Errorf("driver: shift: %w", err)
	}
	for _, bit := range tms {
		h.fsm.Clock(bit)
	}

	// Exit1 -> Update -> Run-Test/Idle, the standard's recommended path
	// out of a completed shift.
	exit := []bool{true, false}
	if _, err := h.probe.Shift(exit, make([]bool, len(exit))); err != nil {
		return "", fmt.Errorf("driver: leave %s: %w", target, err)
	}
	for _, bit := range exit {
		h.fsm.Clock(bit)
	}

	return bitsToHex(tdo), nil
}

func hexToBits(bitLen int, hex string) ([]bool, error) {
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, fmt.Errorf("driver: invalid hex tdi %q", hex)
	}
	bits := make([]bool, bitLen)
	for i := 0; i < bitLen; i++ {
		bits[i] = v.Bit(i) == 1
	}
	return bits, nil
}

func bitsToHex(bits []bool) string {
	v := new(big.Int)
	for i, b := range bits {
		if b {
			v.SetBit(v, i, 1)
		}
	}
	digits := (len(bits) + 3) / 4
	return fmt.Sprintf("%0*X", digits, v)
}
