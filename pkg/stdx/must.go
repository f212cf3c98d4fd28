// Package stdx holds tiny helpers for program setup code.
package stdx

// Must0 panics when err is not nil.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, or panics when err is not nil. Use it for setup steps
// that cannot fail in a correctly configured program, e.g.
//
//	client := stdx.Must1(oachat.New(oachat.FromEnv(".env")))
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
