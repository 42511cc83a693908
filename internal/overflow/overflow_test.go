package overflow

import "testing"

func TestAddUint32(t *testing.T) {
	sum, overflowed := Add(uint32(10), uint32(20))
	if sum != 30 || overflowed {
		t.Fatalf("Add(10,20) = %d, %v; want 30, false", sum, overflowed)
	}
	_, overflowed = Add(uint32(0xfffffff0), uint32(0x20))
	if !overflowed {
		t.Fatal("Add near uint32 max: want overflow")
	}
}

func TestAddUint64(t *testing.T) {
	_, overflowed := Add(uint64(1)<<63, uint64(1)<<63)
	if !overflowed {
		t.Fatal("Add(2^63, 2^63): want overflow")
	}
}

func TestMulUint32(t *testing.T) {
	product, overflowed := Mul(uint32(16), uint32(16))
	if product != 256 || overflowed {
		t.Fatalf("Mul(16,16) = %d, %v; want 256, false", product, overflowed)
	}
	_, overflowed = Mul(uint32(1)<<20, uint32(1)<<20)
	if !overflowed {
		t.Fatal("Mul(2^20, 2^20): want overflow")
	}
}

func TestMulZero(t *testing.T) {
	product, overflowed := Mul(uint64(0), ^uint64(0))
	if product != 0 || overflowed {
		t.Fatal("Mul with a zero operand must never overflow")
	}
}
