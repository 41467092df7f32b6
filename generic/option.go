package generic

// Option[T] is a value that may or may not be present, without resorting to
// pointers or sentinel values.
type Option[T any] struct {
	Value    T
	hasValue bool
}

// IsNone returns true if this Option[T] does not have a value.
func (o Option[T]) IsNone() bool {
	return !o.hasValue
}

// IsSome returns true if this Option[T] has a value.
func (o Option[T]) IsSome() bool {
	return o.hasValue
}

// Expect returns the contained value, or panics with the supplied error message if there is no value.
func (o Option[T]) Expect(msg string) T {
	if !o.hasValue {
		panic(msg)
	}
	return o.Value
}

// Unwrap returns the contained value, or panics if there is no value.
func (o Option[T]) Unwrap() T {
	return o.Expect("tried to Unwrap() a None")
}

// UnwrapOr returns the contained value, or other if there is no value.
func (o Option[T]) UnwrapOr(other T) T {
	if o.hasValue {
		return o.Value
	}
	return other
}

// Some constructs an Option[T] that has a value.
func Some[T any](value T) Option[T] {
	return Option[T]{Value: value, hasValue: true}
}

// None constructs an Option[T] that does not have a value.
func None[T any]() Option[T] {
	return Option[T]{}
}
