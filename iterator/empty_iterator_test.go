package iterator

import (
	"testing"

	"github.com/INLOpen/nexuslog/core"
)

func TestEmptyIterator(t *testing.T) {
	iter := NewEmptyIterator[*core.Add]()

	// Next() should always be false
	if iter.Next() {
		t.Error("Expected Next() to be false, but got true")
	}

	add, err := iter.At()
	if add != nil {
		t.Errorf("Expected At() to return nil, got %v", add)
	}
	if err != nil {
		t.Errorf("Expected At() error to be nil, got %v", err)
	}
	if iter.Error() != nil {
		t.Errorf("Expected Error() to be nil, got %v", iter.Error())
	}
	if err := iter.Close(); err != nil {
		t.Errorf("Expected Close() to return nil, got %v", err)
	}

	// Calling Next() again should still be false
	if iter.Next() {
		t.Error("Expected Next() to be false after first call, but got true")
	}
}
