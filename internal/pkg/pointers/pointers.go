package pointers

import "time"

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

func String(v string) *string { return &v }
func Int(v int) *int          { return &v }

// Now returns a pointer to the current UTC time.
func Now() *time.Time {
	t := time.Now().UTC()
	return &t
}

// Deref returns *p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
