package vm

import "fmt"

// Cell holds a value shared between many owners and enforces, at runtime,
// that it is either borrowed by any number of readers or by a single writer.
//
// A conflicting borrow panics with an error wrapping ErrBorrowConflict. Cells
// never block: the VM is single-mutator, so a conflict is always a re-entrant
// access bug (for example loading a class whose traits are being loaded).
//
// Borrows return the value and a release function. Release functions are
// idempotent; the usual pattern is
//
//	data, release := c.Read()
//	defer release()
type Cell[T any] struct {
	value   T
	readers int
	writing bool
}

// NewCell wraps value in a cell.
func NewCell[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// Read borrows the value for reading. Callers must not mutate through the
// returned pointer.
func (c *Cell[T]) Read() (*T, func()) {
	v, release, err := c.TryRead()
	if err != nil {
		panic(err)
	}
	return v, release
}

// Write borrows the value for exclusive mutation.
func (c *Cell[T]) Write() (*T, func()) {
	v, release, err := c.TryWrite()
	if err != nil {
		panic(err)
	}
	return v, release
}

// TryRead is Read returning an error instead of panicking.
func (c *Cell[T]) TryRead() (*T, func(), error) {
	if c.writing {
		return nil, nil, fmt.Errorf("%w: %T already borrowed mutably", ErrBorrowConflict, c.value)
	}
	c.readers++
	released := false
	return &c.value, func() {
		if !released {
			released = true
			c.readers--
		}
	}, nil
}

// TryWrite is Write returning an error instead of panicking.
func (c *Cell[T]) TryWrite() (*T, func(), error) {
	if c.writing {
		return nil, nil, fmt.Errorf("%w: %T already borrowed mutably", ErrBorrowConflict, c.value)
	}
	if c.readers > 0 {
		return nil, nil, fmt.Errorf("%w: %T already borrowed by %d reader(s)", ErrBorrowConflict, c.value, c.readers)
	}
	c.writing = true
	released := false
	return &c.value, func() {
		if !released {
			released = true
			c.writing = false
		}
	}, nil
}

// Borrowed reports whether any borrow is outstanding.
func (c *Cell[T]) Borrowed() bool {
	return c.writing || c.readers > 0
}
