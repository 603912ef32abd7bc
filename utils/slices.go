package utils

// AppendUnique appends v to s only if it is not already present, preserving
// insertion order.
func AppendUnique[T comparable](s []T, v T) []T {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

// Remove returns s without every occurrence of v.
func Remove[T comparable](s []T, v T) []T {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether v occurs in s.
func Contains[T comparable](s []T, v T) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}
