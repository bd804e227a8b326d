package bitvector

import "testing"

func TestFromHexAndHex(t *testing.T) {
	cases := []struct {
		length int
		hex    string
		want   string
	}{
		{8, "FF", "FF"},
		{8, "0x02", "02"},
		{18, "15555", "15555"},
		{1, "1", "1"},
	}
	for _, c := range cases {
		v, err := FromHex(c.length, c.hex)
		if err != nil {
			t.Fatalf("FromHex(%d, %q): %v", c.length, c.hex, err)
		}
		if got := v.Hex(); got != c.want {
			t.Errorf("FromHex(%d, %q).Hex() = %q, want %q", c.length, c.hex, got, c.want)
		}
	}
}

func TestFromHexTooWide(t *testing.T) {
	if _, err := FromHex(4, "FF"); err == nil {
		t.Fatalf("expected error for value wider than declared length")
	}
}

func TestBin(t *testing.T) {
	v, err := FromUint64(8, 0x02)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v.Bin(), "00000010"; got != want {
		t.Errorf("Bin() = %q, want %q", got, want)
	}
}

func TestSliceAndConcatRoundTrip(t *testing.T) {
	ir, _ := FromHex(8, "FF")
	bsr, _ := FromHex(18, "15555")

	whole := Concat(ir, bsr)
	if whole.Len() != 26 {
		t.Fatalf("Concat length = %d, want 26", whole.Len())
	}

	gotIR, err := whole.Slice(0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !gotIR.Equal(ir) {
		t.Errorf("low slice = %s, want %s", gotIR, ir)
	}

	gotBSR, err := whole.Slice(8, 26)
	if err != nil {
		t.Fatal(err)
	}
	if !gotBSR.Equal(bsr) {
		t.Errorf("high slice = %s, want %s", gotBSR, bsr)
	}
}

func TestSliceOutOfRange(t *testing.T) {
	v := New(8)
	if _, err := v.Slice(0, 9); err == nil {
		t.Fatalf("expected error slicing past end")
	}
	if _, err := v.Slice(4, 2); err == nil {
		t.Fatalf("expected error for start >= end")
	}
}

func TestBit(t *testing.T) {
	v, _ := FromUint64(4, 0b1010)
	if v.Bit(0) {
		t.Errorf("bit 0 should be 0")
	}
	if !v.Bit(1) {
		t.Errorf("bit 1 should be 1")
	}
}

func TestEqualRequiresSameLength(t *testing.T) {
	a, _ := FromUint64(8, 0)
	b, _ := FromUint64(4, 0)
	if a.Equal(b) {
		t.Errorf("vectors of different length must not be equal")
	}
}

func TestIsZero(t *testing.T) {
	if !New(8).IsZero() {
		t.Errorf("New(8) should be zero")
	}
	v, _ := FromUint64(8, 1)
	if v.IsZero() {
		t.Errorf("value 1 should not report zero")
	}
}
