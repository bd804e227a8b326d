package description

import (
	"testing"

	"github.com/bradfordvt/P2654Model/pkg/bitvector"
)

type fakeTarget struct {
	uid  int
	name string
}

func (f fakeTarget) UID() int      { return f.uid }
func (f fakeTarget) Name() string  { return f.name }

func TestNewRegisterLengthMismatch(t *testing.T) {
	safe, _ := bitvector.FromUint64(8, 0xFF)
	if _, err := NewRegister("IR", "IR", ReadWrite, 4, safe); err == nil {
		t.Fatalf("expected error for mismatched safe value length")
	}
}

func TestMuxDefaultAndLookup(t *testing.T) {
	bypass := fakeTarget{uid: 2, name: "BYPASS"}
	bsr := fakeTarget{uid: 3, name: "BSR"}

	c0xFF, _ := bitvector.FromHex(8, "FF")
	c0x02, _ := bitvector.FromHex(8, "02")
	c0x00, _ := bitvector.FromHex(8, "00")

	m, err := NewMux("M1", []MuxEntry{
		{Code: c0xFF, Target: bypass},
		{Code: c0x02, Target: bsr},
		{Code: c0x00, Target: bsr},
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := m.DefaultCode(); !got.Equal(c0xFF) {
		t.Errorf("DefaultCode() = %s, want %s", got, c0xFF)
	}

	entry, ok := m.Lookup(c0x02)
	if !ok || entry.Target.UID() != bsr.uid {
		t.Errorf("Lookup(0x02) = %v, %v; want BSR", entry, ok)
	}

	entry, ok = m.FirstMatch(3)
	if !ok || !entry.Code.Equal(c0x02) {
		t.Errorf("FirstMatch(3) = %v, %v; want code 0x02 (first match)", entry, ok)
	}
}

func TestNewMuxRequiresEntries(t *testing.T) {
	if _, err := NewMux("empty", nil); err == nil {
		t.Fatalf("expected error for empty entry list")
	}
}
