package core

type IteratorNodeInterface interface {
	TypeNode() string
}

// IteratorInterface is a forward-only, pull-based sequence.
// An element may itself be an error: Next returns true and At returns a nil
// value with the error. Error reports the first error observed, for callers
// that treat any error as terminal.
type IteratorInterface[V IteratorNodeInterface] interface {
	Next() bool
	// At returns the current element. It is only valid until the next call to Next().
	At() (V, error)
	Error() error
	Close() error
}
