package utils

import "time"

type Ordered interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64 | ~string
}

func Max[T Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Min[T Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Clamp[T Ordered](x, lo, hi T) T {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// LaterTime returns the later of two timestamps.
func LaterTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// EarlierTime returns the earlier of two timestamps.
func EarlierTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// TimePtr returns a pointer to t. Handy for optional timestamp fields.
func TimePtr(t time.Time) *time.Time {
	return &t
}
