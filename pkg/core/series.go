package core

import (
	"golang.org/x/exp/constraints"
)

// Series is a time series of ordered values
type Series[T constraints.Ordered] []T

// Values returns the underlying slice of values
func (s Series[T]) Values() []T {
	return s
}

// Length returns the number of values in the series
func (s Series[T]) Length() int {
	return len(s)
}

// Last returns the value at a specified position from the end
// position 0 is the last value, 1 is the second-to-last, etc.
func (s Series[T]) Last(position int) T {
	return s[len(s)-1-position]
}

// LastValues returns a slice with the last 'size' values
// If size exceeds the length, returns the entire series
func (s Series[T]) LastValues(size int) Series[T] {
	if l := len(s); l > size {
		return s[l-size:]
	}
	return s
}

// CrossedAbove reports an upward cross landing on the last value: the series is at or
// above ref now and was at or below it one step earlier. Touching counts as crossing.
func (s Series[T]) CrossedAbove(ref Series[T]) bool {
	if len(s) < 2 || len(ref) < 2 {
		return false
	}
	return s.Last(0) >= ref.Last(0) && s.Last(1) <= ref.Last(1)
}

// HeldAbove reports that the series was at or above ref for the last two values
func (s Series[T]) HeldAbove(ref Series[T]) bool {
	if len(s) < 2 || len(ref) < 2 {
		return false
	}
	return s.Last(0) >= ref.Last(0) && s.Last(1) >= ref.Last(1)
}
