package iterator

import (
	"github.com/INLOpen/nexuslog/core"
)

// Element is one item of a SliceIterator: a value, or an error in its place.
type Element[V core.IteratorNodeInterface] struct {
	Value V
	Err   error
}

// SliceIterator replays a fixed list of elements. Error elements are
// returned from At like any other element.
type SliceIterator[V core.IteratorNodeInterface] struct {
	elems    []Element[V]
	idx      int
	firstErr error
	closed   bool
}

// NewSliceIterator iterates over values in order.
func NewSliceIterator[V core.IteratorNodeInterface](values ...V) *SliceIterator[V] {
	elems := make([]Element[V], len(values))
	for i, v := range values {
		elems[i] = Element[V]{Value: v}
	}
	return &SliceIterator[V]{elems: elems}
}

// NewElementIterator iterates over elements, some of which may be errors.
func NewElementIterator[V core.IteratorNodeInterface](elems ...Element[V]) *SliceIterator[V] {
	return &SliceIterator[V]{elems: elems}
}

func (it *SliceIterator[V]) Next() bool {
	if it.closed || it.idx >= len(it.elems) {
		return false
	}
	it.idx++
	if err := it.elems[it.idx-1].Err; err != nil && it.firstErr == nil {
		it.firstErr = err
	}
	return true
}

func (it *SliceIterator[V]) At() (V, error) {
	if it.idx == 0 || it.idx > len(it.elems) {
		var zero V
		return zero, nil
	}
	e := it.elems[it.idx-1]
	return e.Value, e.Err
}

func (it *SliceIterator[V]) Error() error { return it.firstErr }

// Close marks the iterator exhausted.
func (it *SliceIterator[V]) Close() error {
	it.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (it *SliceIterator[V]) Closed() bool { return it.closed }

// EmptyIterator is an iterator that is always exhausted.
type EmptyIterator[V core.IteratorNodeInterface] struct{}

// NewEmptyIterator creates a new empty iterator.
func NewEmptyIterator[V core.IteratorNodeInterface]() core.IteratorInterface[V] {
	return &EmptyIterator[V]{}
}

// Next always returns false.
func (it *EmptyIterator[V]) Next() bool {
	return false
}

// At returns the zero value.
func (it *EmptyIterator[V]) At() (V, error) {
	var zero V
	return zero, nil
}

// Error always returns nil.
func (it *EmptyIterator[V]) Error() error {
	return nil
}

// Close does nothing and returns nil.
func (it *EmptyIterator[V]) Close() error {
	return nil
}

// CountingIterator counts how many elements have been pulled from the
// wrapped iterator.
type CountingIterator[V core.IteratorNodeInterface] struct {
	core.IteratorInterface[V]
	pulls int
}

// NewCountingIterator wraps inner.
func NewCountingIterator[V core.IteratorNodeInterface](inner core.IteratorInterface[V]) *CountingIterator[V] {
	return &CountingIterator[V]{IteratorInterface: inner}
}

func (it *CountingIterator[V]) Next() bool {
	if !it.IteratorInterface.Next() {
		return false
	}
	it.pulls++
	return true
}

// Pulls returns the number of successful Next calls so far.
func (it *CountingIterator[V]) Pulls() int { return it.pulls }

// Collect drains it and closes it. It stops at the first error element.
func Collect[V core.IteratorNodeInterface](it core.IteratorInterface[V]) ([]V, error) {
	defer it.Close()
	var out []V
	for it.Next() {
		v, err := it.At()
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, it.Error()
}
