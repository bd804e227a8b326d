package assembly

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/description"
	"github.com/bradfordvt/P2654Model/pkg/driver"
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// countingTracker is a minimal PendingTracker for tests that don't need a
// full scheduler: it just counts outstanding leaves.
type countingTracker struct {
	n int32
}

func (c *countingTracker) MarkPending() { atomic.AddInt32(&c.n, 1) }
func (c *countingTracker) ClearPending() {
	for {
		cur := atomic.LoadInt32(&c.n)
		if cur <= 0 {
			atomic.StoreInt32(&c.n, 0)
			return
		}
		if atomic.CompareAndSwapInt32(&c.n, cur, cur-1) {
			return
		}
	}
}

func (c *countingTracker) pending() int32 { return atomic.LoadInt32(&c.n) }

// buildSeedTree builds the seed scenario topology: ScanRegister IR,
// BYPASS, BSR; ScanMux M1 over IR; TAP U1; JTAGControllerAssembly JC1
// driving a loopback.
func buildSeedTree(t *testing.T) (jc1 *Controller, ir, bypass, bsr *Leaf, tracker *countingTracker, lb *driver.Loopback) {
	t.Helper()
	tracker = &countingTracker{}
	stop := link.NewStop()

	irSafe, _ := bitvector.FromHex(8, "FF")
	irDesc, err := description.NewRegister("IR", "IR", description.ReadWrite, 8, irSafe)
	if err != nil {
		t.Fatal(err)
	}
	ir, err = NewLeaf(1, irDesc, KindScanRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}

	bypassSafe, _ := bitvector.FromHex(1, "0")
	bypassDesc, err := description.NewRegister("BYPASS", "BYPASS", description.ReadWrite, 1, bypassSafe)
	if err != nil {
		t.Fatal(err)
	}
	bypass, err = NewLeaf(2, bypassDesc, KindScanRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}

	bsrSafe, _ := bitvector.FromHex(18, "0")
	bsrDesc, err := description.NewRegister("BSR", "BSR", description.ReadWrite, 18, bsrSafe)
	if err != nil {
		t.Fatal(err)
	}
	bsr, err = NewLeaf(3, bsrDesc, KindScanRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}

	c0xFF, _ := bitvector.FromHex(8, "FF")
	c0x02, _ := bitvector.FromHex(8, "02")
	c0x00, _ := bitvector.FromHex(8, "00")
	muxDesc, err := description.NewMux("M1", []description.MuxEntry{
		{Code: c0xFF, Target: bypass},
		{Code: c0x02, Target: bsr},
		{Code: c0x00, Target: bsr},
	})
	if err != nil {
		t.Fatal(err)
	}
	mux, err := NewMux(4, "M1", KindScanMux, muxDesc, ir, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}

	tapDesc := description.NewTAP("U1")
	tap := NewTAP(5, tapDesc, ir, mux, tracker, stop)
	AttachChild(mux, bypass, stop)
	AttachChild(mux, bsr, stop)

	lb = driver.NewLoopback()
	jc1 = NewController(6, "JC1", lb, tracker, stop)
	jc1.AddChild(tap, stop)

	return jc1, ir, bypass, bsr, tracker, lb
}

func settle(t *testing.T, root *Controller, tracker *countingTracker) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for tracker.pending() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("apply cycle did not converge, pending=%d", tracker.pending())
		}
		if err := root.Apply(); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
}

func TestSeedScenario(t *testing.T) {
	jc1, ir, _, bsr, tracker, _ := buildSeedTree(t)

	write := func(leaf *Leaf, hex string, bits int) {
		v, err := bitvector.FromHex(bits, hex)
		if err != nil {
			t.Fatal(err)
		}
		if err := leaf.Write(v); err != nil {
			t.Fatal(err)
		}
		settle(t, jc1, tracker)
	}

	write(ir, "FF", 8)
	write(ir, "02", 8)

	v, _ := bitvector.FromHex(18, "15555")
	if err := bsr.WriteRead(v); err != nil {
		t.Fatal(err)
	}
	settle(t, jc1, tracker)

	got, err := bsr.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !got.Equal(v) {
		t.Errorf("BSR read = %s, want %s", got, v)
	}
}

func TestLeafReadBeforeSyncErrors(t *testing.T) {
	tracker := &countingTracker{}
	stop := link.NewStop()
	safe, _ := bitvector.FromHex(4, "0")
	desc, _ := description.NewRegister("R", "R", description.ReadWrite, 4, safe)
	leaf, err := NewLeaf(1, desc, KindDataRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := leaf.Read(); err == nil {
		t.Fatal("expected error reading unsynchronized register")
	}
}

func TestLeafWriteOnlyRejectsRead(t *testing.T) {
	tracker := &countingTracker{}
	stop := link.NewStop()
	safe, _ := bitvector.FromHex(4, "0")
	desc, _ := description.NewRegister("R", "R", description.WriteOnly, 4, safe)
	leaf, err := NewLeaf(1, desc, KindDataRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := leaf.Read(); err == nil {
		t.Fatal("expected error reading WRITE_ONLY register")
	}
}

func TestLeafReadOnlyRejectsWrite(t *testing.T) {
	tracker := &countingTracker{}
	stop := link.NewStop()
	safe, _ := bitvector.FromHex(4, "0")
	desc, _ := description.NewRegister("R", "R", description.ReadOnly, 4, safe)
	leaf, err := NewLeaf(1, desc, KindDataRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := bitvector.FromHex(4, "1")
	if err := leaf.Write(v); err == nil {
		t.Fatal("expected error writing READ_ONLY register")
	}
}

func TestMuxCompetingPathsDetected(t *testing.T) {
	tracker := &countingTracker{}
	stop := link.NewStop()

	irSafe, _ := bitvector.FromHex(8, "FF")
	irDesc, _ := description.NewRegister("IR", "IR", description.ReadWrite, 8, irSafe)
	ir, err := NewLeaf(1, irDesc, KindScanRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}

	aSafe, _ := bitvector.FromHex(4, "0")
	aDesc, _ := description.NewRegister("A", "A", description.ReadWrite, 4, aSafe)
	a, err := NewLeaf(2, aDesc, KindScanRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}

	bSafe, _ := bitvector.FromHex(4, "0")
	bDesc, _ := description.NewRegister("B", "B", description.ReadWrite, 4, bSafe)
	b, err := NewLeaf(3, bDesc, KindScanRegister, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}

	c0, _ := bitvector.FromHex(8, "00")
	c1, _ := bitvector.FromHex(8, "01")
	muxDesc, err := description.NewMux("M", []description.MuxEntry{
		{Code: c0, Target: a},
		{Code: c1, Target: b},
	})
	if err != nil {
		t.Fatal(err)
	}
	mux, err := NewMux(4, "M", KindScanMux, muxDesc, ir, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}
	AttachChild(mux, a, stop)
	AttachChild(mux, b, stop)

	// Drive two competing host callbacks directly in the same cycle,
	// bypassing the usual child.Apply()-triggered request path so the
	// race window always manifests regardless of goroutine scheduling.
	av, _ := bitvector.FromUint64(4, 1)
	bv, _ := bitvector.FromUint64(4, 2)
	if err := mux.HostCallback(rvf.New(a.UID(), rvf.Write, av)); err != nil {
		t.Fatalf("HostCallback(a): %v", err)
	}
	if err := mux.HostCallback(rvf.New(b.UID(), rvf.Write, bv)); err != nil {
		t.Fatalf("HostCallback(b): %v", err)
	}

	if err := mux.Apply(); err == nil {
		t.Fatal("expected multiple competing paths error")
	}
}

func TestMuxSelectorInference(t *testing.T) {
	jc1, _, bypass, bsr, tracker, _ := buildSeedTree(t)

	v, _ := bitvector.FromHex(1, "1")
	if err := bypass.Write(v); err != nil {
		t.Fatal(err)
	}
	settle(t, jc1, tracker)

	bv, _ := bitvector.FromHex(18, "3FFFF")
	if err := bsr.WriteRead(bv); err != nil {
		t.Fatal(err)
	}
	settle(t, jc1, tracker)

	got, err := bsr.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(bv) {
		t.Errorf("BSR read after selector switch = %s, want %s", got, bv)
	}
}

func TestStubReportsNotImplemented(t *testing.T) {
	tracker := &countingTracker{}
	stop := link.NewStop()
	stub, err := NewStub(1, "I2C1", KindI2CClient, tracker, stop)
	if err != nil {
		t.Fatal(err)
	}
	if err := stub.Apply(); err == nil {
		t.Fatal("expected Apply to report not implemented")
	}
	if err := stub.HostCallback(rvf.New(1, rvf.Write, bitvector.New(4))); err == nil {
		t.Fatal("expected HostCallback to report not implemented")
	}
}

func TestNewStubRejectsNonStubKind(t *testing.T) {
	tracker := &countingTracker{}
	stop := link.NewStop()
	if _, err := NewStub(1, "X", KindTAP, tracker, stop); err == nil {
		t.Fatal("expected error constructing a stub of a non-stub kind")
	}
}

func TestListCBIncludesKindSpecificCommands(t *testing.T) {
	cmds := ListCB(KindScanMux)
	if cmds == "" {
		t.Fatal("expected non-empty command list")
	}
	leafCmds := KindScanRegister.SupportedCommands()
	if len(leafCmds) != 1 || leafCmds[0] != rvf.ListCB {
		t.Errorf("leaf kinds should only support LISTCB, got %v", leafCmds)
	}
	muxCmds := KindScanMux.SupportedCommands()
	found := false
	for _, c := range muxCmds {
		if c == rvf.Address {
			found = true
		}
	}
	if !found {
		t.Errorf("mux kinds should support ADDRESS, got %v", muxCmds)
	}
}
