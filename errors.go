package kinbaku

import "errors"

// Sentinel errors. Callers classify with errors.Is; most are wrapped with
// additional context via fmt.Errorf("kinbaku: ...: %w", ...), while
// ErrClosed, ErrReadOnly and ErrIntegrity are returned unwrapped.
var (
	// ErrNodeNotFound is returned when a requested node key does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when a requested (source, target, type)
	// triple does not match any edge.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrKeyTooLong is returned when a node key exceeds Options.MaxKeyLen.
	ErrKeyTooLong = errors.New("key too long")

	// ErrCorrupt indicates the on-disk header or layout failed validation.
	// The file should be treated as unusable for this handle.
	ErrCorrupt = errors.New("corrupt graph file")

	// ErrIncompatible indicates the file header does not match this
	// format (magic, format version, edge record size), or that
	// Options.MaxKeyLen or Options.TableIncrement is out of range. A
	// stored max key length that differs from Options.MaxKeyLen is not an
	// error: the stored one is used.
	ErrIncompatible = errors.New("incompatible graph file")

	// ErrIntegrity indicates an invariant of the index trees was violated
	// mid-operation. This is fatal for the call that returned it.
	ErrIntegrity = errors.New("integrity error")

	// ErrAlreadyOpen is returned by Open when the same path is already
	// open in this process.
	ErrAlreadyOpen = errors.New("graph file already open in this process")

	// ErrClosed is returned by any operation on a Graph after Close.
	ErrClosed = errors.New("graph is closed")

	// ErrReadOnly is returned by mutating operations on a Graph opened
	// with Options.ReadOnly.
	ErrReadOnly = errors.New("graph is read-only")
)
