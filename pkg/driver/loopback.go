package driver

import (
	"fmt"
	"math/big"
	"sync"
)

// ShiftHook lets a test override TDO behavior for a particular scan,
// mirroring the teacher's jtag.ShiftHook (pkg/jtag/simulator.go).
type ShiftHook func(isDR bool, bitLen int, tdiHex string) (tdoHex string, err error)

// Loopback is the seed scenario's driver (spec §8): by default it echoes
// TDI back as TDO, exactly as the teacher's SimAdapter does when no
// OnShift hook is set. A driver.Loopback with FirstCaptureZero set mimics
// spec §8's "driver may return zero for the first capture" testability
// note: the very first ScanIR/ScanDR call returns all-zero TDO instead of
// echoing TDI, whether or not the caller captures that result, after which
// it echoes normally.
type Loopback struct {
	mu sync.Mutex

	OnShift ShiftHook

	FirstCaptureZero bool
	seenFirstCapture bool

	lastIsDR  bool
	lastBits  int
	lastTDI   string
}

// NewLoopback constructs a Loopback driver with default echo behavior.
func NewLoopback() *Loopback {
	return &Loopback{}
}

// LastShift reports the most recent shift this driver served, for test
// assertions.
func (l *Loopback) LastShift() (isDR bool, bitLen int, tdiHex string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastIsDR, l.lastBits, l.lastTDI
}

func (l *Loopback) ScanIR(bitLen int, tdiHex string) (string, error) {
	return l.shift(false, bitLen, tdiHex)
}

func (l *Loopback) ScanDR(bitLen int, tdiHex string) (string, error) {
	return l.shift(true, bitLen, tdiHex)
}

func (l *Loopback) shift(isDR bool, bitLen int, tdiHex string) (string, error) {
	if bitLen <= 0 {
		return "", fmt.Errorf("driver: bitLen must be positive, got %d", bitLen)
	}

	l.mu.Lock()
	l.lastIsDR, l.lastBits, l.lastTDI = isDR, bitLen, tdiHex
	firstCapture := l.FirstCaptureZero && !l.seenFirstCapture
	l.seenFirstCapture = true
	l.mu.Unlock()

	if l.OnShift != nil {
		return l.OnShift(isDR, bitLen, tdiHex)
	}

	if firstCapture {
		digits := (bitLen + 3) / 4
		return fmt.Sprintf("%0*X", digits, 0), nil
	}

	v, ok := new(big.Int).SetString(tdiHex, 16)
	if !ok {
		return "", fmt.Errorf("driver: invalid hex tdi %q", tdiHex)
	}
	digits := (bitLen + 3) / 4
	return fmt.Sprintf("%0*X", digits, v), nil
}
