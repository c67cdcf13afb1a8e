package whery

import "errors"

// Sentinel errors for the engine's named error kinds. Callers should
// compare against these with errors.Is; wrapped instances carry
// additional context via internal/utils.WrapError.
var (
	// ErrEmptySchema is returned when building a layout, key, or
	// projection from zero fields.
	ErrEmptySchema = errors.New("whery: schema has no fields")

	// ErrArityMismatch is returned when comparing or copying tuples of
	// different arities.
	ErrArityMismatch = errors.New("whery: tuple arity mismatch")

	// ErrTypeIncompatible is returned when a field conversion or
	// comparison crosses incompatible scalar types.
	ErrTypeIncompatible = errors.New("whery: incompatible field type")

	// ErrPageFull is returned by AddTuple on a page already at its
	// maximum tuple count.
	ErrPageFull = errors.New("whery: page is full")

	// ErrUnknownID is returned by the ID allocator's Deallocate on an id
	// not currently in use, and by the page cache's RetrievePage on an
	// unknown id.
	ErrUnknownID = errors.New("whery: unknown id")

	// ErrWriteToReadOnly is returned when writing through a read-only
	// field, or copying into a read-only tuple.
	ErrWriteToReadOnly = errors.New("whery: write to read-only field")

	// ErrDuplicatePersistenceTarget is returned by the page cache's
	// AddPageWithPersister when the supplied persister is already mapped
	// to another page.
	ErrDuplicatePersistenceTarget = errors.New("whery: persister already mapped to a page")

	// ErrNotPersistable is returned by page cache pin/unpin/flush on a
	// page that has no associated persister.
	ErrNotPersistable = errors.New("whery: page is not persistable")
)
