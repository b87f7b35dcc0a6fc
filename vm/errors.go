package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error Types
// ---------------------------------------------------------------------------

var (
	// ErrNoInterpreter is returned when a bytecode method is invoked on an
	// Avm that has no Interpreter installed.
	ErrNoInterpreter = errors.New("no interpreter installed")

	// ErrBorrowConflict is the panic value (wrapped) raised by Cell on an
	// overlapping borrow.
	ErrBorrowConflict = errors.New("borrow conflict")

	// ErrSlotOutOfBounds is returned for slot accesses past the slot table.
	ErrSlotOutOfBounds = errors.New("slot index out of bounds")
)

// LoadError reports a malformed or out-of-range archive reference.
type LoadError struct {
	Msg string
}

func (e *LoadError) Error() string {
	return "LoadError: " + e.Msg
}

func loadErrorf(format string, args ...any) error {
	return &LoadError{Msg: fmt.Sprintf(format, args...)}
}

// VerifyError reports an illegal class shape. Class and Trait name the
// offending class and trait when known.
type VerifyError struct {
	Class string
	Trait string
	Msg   string
}

func (e *VerifyError) Error() string {
	return "VerifyError: " + e.Msg
}

func verifyErrorf(class, trait, format string, args ...any) error {
	return &VerifyError{Class: class, Trait: trait, Msg: fmt.Sprintf(format, args...)}
}

// TypeError reports a failed coercion or type resolution.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string {
	return "TypeError: " + e.Msg
}

func typeErrorf(format string, args ...any) error {
	return &TypeError{Msg: fmt.Sprintf(format, args...)}
}
