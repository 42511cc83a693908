// Package overflow implements checked integer arithmetic for the unsigned
// widths the binary-container readers use when summing offsets and sizes
// read from untrusted input.
package overflow

// Unsigned is the set of widths the core ever performs checked arithmetic
// over: 32-bit offsets/sizes (symbol-table regions, DSC table sizes, the
// ncmds * prefix-size bound) and 64-bit ones (load-command running totals,
// DSC address translation).
type Unsigned interface {
	~uint32 | ~uint64
}

// Add returns a+b and reports whether the addition overflowed the width of T.
// Mirrors guard_overflow_add: the sum is still produced on overflow (wrapped,
// via normal Go unsigned arithmetic) so a caller that chooses to downgrade
// the error to a warning has a value to fall back on.
func Add[T Unsigned](a, b T) (sum T, overflowed bool) {
	sum = a + b
	return sum, sum < a
}

// Mul returns a*b and reports whether the multiplication overflowed the
// width of T.
func Mul[T Unsigned](a, b T) (product T, overflowed bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	product = a * b
	return product, product/a != b
}
