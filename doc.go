// Package kinbaku implements an embedded, single-file, on-disk directed
// multigraph. A file is memory-mapped into the process and mutated in
// place: node and edge records live in a flat slot table behind a fixed
// header, a global binary search tree orders all nodes by (hash, key),
// and every node carries a pair of binary search trees over its incident
// edges (one for out-edges, one for in-edges), ordered by (hash, source,
// target, type).
//
// # Basic usage
//
//	g, err := kinbaku.Open("graph.kb", kinbaku.Options{})
//	if err != nil {
//	    // handle ErrCorrupt/ErrIncompatible by recreating the file
//	}
//	defer g.Close()
//
//	if err := g.AddEdge("alice", "bob", 0); err != nil {
//	    // ...
//	}
//
// # Concurrency
//
// kinbaku is single-writer, multi-reader within one process, and is not
// safe across processes: there is no WAL, no crash-atomic durability, and
// no tree balancing. Open returns ErrAlreadyOpen if the same path is
// already open in this process.
//
// # Error handling
//
// Errors fall into two categories: ErrNodeNotFound, ErrEdgeNotFound and
// ErrKeyTooLong are recoverable and classified with errors.Is. ErrCorrupt
// indicates the on-disk layout is internally inconsistent; the call that
// returned it should be treated as fatal for that Graph handle.
package kinbaku
