package bitset

import "testing"

func TestSetClearTest(t *testing.T) {
	var s Set
	if s.Test(5) {
		t.Fatal("fresh set: bit 5 must be unset")
	}
	s.Set(5)
	if !s.Test(5) {
		t.Fatal("bit 5 must be set after Set")
	}
	if s.Test(4) || s.Test(6) {
		t.Fatal("neighbouring bits must remain unset")
	}
	s.Clear(5)
	if s.Test(5) {
		t.Fatal("bit 5 must be unset after Clear")
	}
}

func TestGrowsAcrossWords(t *testing.T) {
	var s Set
	s.Set(130)
	if !s.Test(130) {
		t.Fatal("bit 130 (third word) must be set")
	}
	if s.Len() < 131 {
		t.Fatalf("Len() = %d, want >= 131", s.Len())
	}
}
