package common

import "cmp"

// Coalesce returns the first of values that is not the zero value of T.
// With no non-zero value it returns the zero value.
//
// Parameters:
//   - values: candidates in priority order
//
// Returns:
//   - T: the first non-zero candidate
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp limits v to the closed range [lo, hi].
//
// Parameters:
//   - v: the value to limit
//   - lo, hi: the bounds, lo <= hi
//
// Returns:
//   - T: v, lo or hi
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
