// Package bitvector implements the fixed-length bit-vector value type
// carried by every request/response frame in the scan-network model. The
// original implementation borrows myhdl.intbv for this purpose; here it is a
// first-class, immutable value with exact hex/binary rendering, matching the
// source's reliance on an arbitrary-precision bit container.
package bitvector

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/bradfordvt/P2654Model/pkg/modelerr"
)

// Value is an immutable bit-vector of a declared length. The zero Value is a
// zero-length vector and is never used directly by the model; construct one
// with New, FromUint64, or FromHex.
type Value struct {
	length int
	bits   big.Int
}

// New returns the all-zero bit-vector of the given length.
func New(length int) Value {
	if length <= 0 {
		panic(fmt.Sprintf("bitvector: length must be positive, got %d", length))
	}
	return Value{length: length}
}

func mask(length int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(length))
	return m.Sub(m, big.NewInt(1))
}

// FromUint64 builds a bit-vector from a machine word, failing if v does not
// fit in length bits.
func FromUint64(length int, v uint64) (Value, error) {
	if length <= 0 || length > 64 {
		return Value{}, modelerr.New("bitvector: length %d out of range for FromUint64", length)
	}
	if v > 0 && uint(bitsLen(v)) > uint(length) {
		return Value{}, modelerr.New("bitvector: value 0x%X does not fit in %d bits", v, length)
	}
	var out Value
	out.length = length
	out.bits.SetUint64(v)
	return out, nil
}

func bitsLen(v uint64) int {
	n := 0
	for v != 0 {
		n++
		v >>= 1
	}
	return n
}

// FromBig builds a bit-vector from an arbitrary-precision integer, masking
// nothing: v must already fit within length bits and must be non-negative.
func FromBig(length int, v *big.Int) (Value, error) {
	if length <= 0 {
		return Value{}, modelerr.New("bitvector: length must be positive, got %d", length)
	}
	if v.Sign() < 0 {
		return Value{}, modelerr.New("bitvector: value must be non-negative")
	}
	if v.Cmp(mask(length)) > 0 {
		return Value{}, modelerr.New("bitvector: value 0x%X does not fit in %d bits", v, length)
	}
	var out Value
	out.length = length
	out.bits.Set(v)
	return out, nil
}

// FromHex parses a hex string (with or without a leading "0x") into a
// bit-vector of the given length. Extra high bits in the string beyond
// length are rejected rather than silently truncated.
func FromHex(length int, hex string) (Value, error) {
	hex = strings.TrimPrefix(strings.TrimPrefix(hex, "0x"), "0X")
	if hex == "" {
		hex = "0"
	}
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return Value{}, modelerr.New("bitvector: invalid hex string %q", hex)
	}
	return FromBig(length, v)
}

// Len reports the declared bit length of the vector.
func (v Value) Len() int {
	return v.length
}

// Uint64 returns the value as a machine word. Callers must ensure Len() <= 64.
func (v Value) Uint64() uint64 {
	return v.bits.Uint64()
}

// Big returns the underlying magnitude. The returned pointer must not be
// mutated by the caller.
func (v Value) Big() *big.Int {
	return &v.bits
}

// Hex renders the vector as a zero-padded, uppercase hex string sized to
// exactly ceil(length/4) digits, matching the width the driver contract
// expects for a shift of this bit length.
func (v Value) Hex() string {
	digits := (v.length + 3) / 4
	return fmt.Sprintf("%0*X", digits, &v.bits)
}

// Bin renders the vector as a zero-padded binary string of exactly Len() bits.
func (v Value) Bin() string {
	return fmt.Sprintf("%0*s", v.length, v.bits.Text(2))
}

// Bit returns bit i, where bit 0 is the least-significant bit.
func (v Value) Bit(i int) bool {
	if i < 0 || i >= v.length {
		panic(fmt.Sprintf("bitvector: bit index %d out of range [0,%d)", i, v.length))
	}
	return v.bits.Bit(i) == 1
}

// Equal reports whether two vectors have the same length and value.
func (v Value) Equal(other Value) bool {
	return v.length == other.length && v.bits.Cmp(&other.bits) == 0
}

// IsZero reports whether the vector's value is all zero bits.
func (v Value) IsZero() bool {
	return v.bits.Sign() == 0
}

// Slice extracts bits [start,end) (bit 0 = least-significant bit of the
// whole vector) into a new vector of length end-start. It is the model's
// disaggregation primitive: a network's apply response is sliced back into
// each child's declared segment.
func (v Value) Slice(start, end int) (Value, error) {
	if start < 0 || end > v.length || start >= end {
		return Value{}, modelerr.New("bitvector: invalid slice [%d,%d) of length %d", start, end, v.length)
	}
	shifted := new(big.Int).Rsh(&v.bits, uint(start))
	shifted.And(shifted, mask(end-start))
	var out Value
	out.length = end - start
	out.bits.Set(shifted)
	return out, nil
}

// Concat concatenates parts into a single vector whose length is the sum of
// each part's length. parts[0] occupies the low-order bits, parts[1] sits
// above it, and so on — the same ordering a network node uses when it
// re-assembles a physical scan's response into per-child segments via Slice,
// so Concat(a, b).Slice(0, a.Len()) always reproduces a.
func Concat(parts ...Value) Value {
	var out Value
	shift := uint(0)
	acc := new(big.Int)
	for _, p := range parts {
		term := new(big.Int).Lsh(&p.bits, shift)
		acc.Or(acc, term)
		shift += uint(p.length)
		out.length += p.length
	}
	out.bits.Set(acc)
	return out
}

// String implements fmt.Stringer for debugging and log output.
func (v Value) String() string {
	return fmt.Sprintf("0x%s(%d)", v.Hex(), v.length)
}
