package kinbaku

// Options configure creating or opening a graph file.
//
// Fields that affect on-disk layout (MaxKeyLen) only take effect when a
// new file is created; opening an existing file always uses the layout
// recorded in its header, and a mismatching MaxKeyLen is ignored rather
// than rejected (ErrIncompatible is returned for magic/version/edge-size
// mismatches that would misinterpret the byte layout, and for a
// MaxKeyLen or TableIncrement outside the supported range).
type Options struct {
	// MaxKeyLen bounds node key length in bytes. Defaults to 15.
	MaxKeyLen uint32

	// TableIncrement is the number of slots appended each time the file
	// grows. Defaults to 1024.
	TableIncrement uint64

	// CacheSize bounds each of the four LRU caches. Defaults to 8192.
	CacheSize int

	// HashFunc hashes a node key to its 32-bit bucket hash. Defaults to
	// FNV-1a. Supplying a custom function on an existing file must match
	// the function used when the file was created, or lookups silently
	// miss.
	HashFunc func(string) uint32

	// ReadOnly opens the file for reads only; mutating calls return
	// ErrReadOnly.
	ReadOnly bool
}

// NodeView is a snapshot of a node record returned by read operations.
type NodeView struct {
	Key   string
	Hash  uint32
	Index uint64
}

// EdgeView is a snapshot of an edge record returned by read operations.
type EdgeView struct {
	Source string
	Target string
	Type   uint32
	Hash   uint32
}
