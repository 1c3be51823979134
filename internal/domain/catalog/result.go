package catalog

// Result is the outcome of a single store call: either a payload or the
// reason it failed. Transition functions consume it so that both outcomes
// can be simulated without a network.
type Result[T any] struct {
	Value T
	Err   error
}

// Succeeded wraps a successful payload.
func Succeeded[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Failed wraps a failure.
func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Resolve builds a Result from a conventional (value, error) pair.
func Resolve[T any](v T, err error) Result[T] {
	if err != nil {
		return Failed[T](err)
	}
	return Succeeded(v)
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }
