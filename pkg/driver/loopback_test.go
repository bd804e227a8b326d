package driver

import "testing"

func TestLoopbackEchoesTDI(t *testing.T) {
	d := NewLoopback()
	tdo, err := d.ScanDR(18, "15555")
	if err != nil {
		t.Fatal(err)
	}
	if tdo != "15555" {
		t.Errorf("ScanDR echo = %q, want %q", tdo, "15555")
	}
}

func TestLoopbackFirstCaptureZero(t *testing.T) {
	d := NewLoopback()
	d.FirstCaptureZero = true

	first, err := d.ScanDR(8, "FF")
	if err != nil {
		t.Fatal(err)
	}
	if first != "00" {
		t.Errorf("first capture = %q, want %q", first, "00")
	}

	second, err := d.ScanDR(8, "FF")
	if err != nil {
		t.Fatal(err)
	}
	if second != "FF" {
		t.Errorf("second capture = %q, want %q", second, "FF")
	}
}

func TestLoopbackOnShiftHook(t *testing.T) {
	d := NewLoopback()
	d.OnShift = func(isDR bool, bitLen int, tdiHex string) (string, error) {
		if isDR {
			return "00", nil
		}
		return tdiHex, nil
	}

	tdo, err := d.ScanDR(8, "FF")
	if err != nil {
		t.Fatal(err)
	}
	if tdo != "00" {
		t.Errorf("hooked ScanDR = %q, want %q", tdo, "00")
	}

	tdo, err = d.ScanIR(8, "AA")
	if err != nil {
		t.Fatal(err)
	}
	if tdo != "AA" {
		t.Errorf("hooked ScanIR = %q, want %q", tdo, "AA")
	}
}

func TestLoopbackRejectsZeroBitLen(t *testing.T) {
	d := NewLoopback()
	if _, err := d.ScanIR(0, "00"); err == nil {
		t.Fatalf("expected error for zero bitLen")
	}
}
