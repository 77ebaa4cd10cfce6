package kinbaku

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"sync"
)

// Graph is a handle to an open Kinbaku graph file. A Graph must not be
// used from multiple goroutines without external synchronization for
// writes; reads are safe to run concurrently with each other but not
// with a concurrent write, matching the single-writer model in
// SPEC_FULL.md §4.6.
type Graph struct {
	path   string
	sub    *substrate
	header fileHeader
	layout layout
	opts   Options

	hashFunc func(string) uint32

	nodeFree []uint64
	edgeFree []uint64

	cache *caches

	mu     sync.Mutex
	closed bool
}

// Open opens the graph file at path, creating it if it does not exist.
// With Options.ReadOnly set, a missing file is an error instead.
// Mirrors graph.py's Graph.__init__/_load_file.
func Open(path string, opts Options) (*Graph, error) {
	if opts.MaxKeyLen == 0 {
		opts.MaxKeyLen = defaultMaxKeyLen
	}
	if opts.MaxKeyLen > maxKeyLenLimit {
		return nil, fmt.Errorf("kinbaku: open %s: max key len %d exceeds limit: %w", path, opts.MaxKeyLen, ErrIncompatible)
	}
	if opts.TableIncrement == 0 {
		opts.TableIncrement = defaultTableIncr
	}
	if opts.TableIncrement < minTableIncrement || opts.TableIncrement > maxTableIncrement {
		return nil, fmt.Errorf("kinbaku: open %s: table increment %d out of range: %w", path, opts.TableIncrement, ErrIncompatible)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.HashFunc == nil {
		opts.HashFunc = defaultHashFunc
	}

	if err := acquireProcessLock(path); err != nil {
		return nil, err
	}

	g, err := openLocked(path, opts)
	if err != nil {
		releaseProcessLock(path)
		return nil, err
	}
	return g, nil
}

func openLocked(path string, opts Options) (*Graph, error) {
	l := newLayout(opts.MaxKeyLen)

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	if isNew {
		if opts.ReadOnly {
			return nil, fmt.Errorf("kinbaku: open %s: %w", path, os.ErrNotExist)
		}
		h := fileHeader{
			tableIncrement:    opts.TableIncrement,
			tableSize:         opts.TableIncrement + uint64(l.ratio),
			nextTablePosition: uint64(l.ratio),
			nodeID:            1,
			maxKeyLen:         opts.MaxKeyLen,
		}
		if err := createFile(path, h, l); err != nil {
			return nil, err
		}
	}

	sub, err := openSubstrate(path, opts.ReadOnly)
	if err != nil {
		return nil, err
	}

	header, err := decodeHeader(sub.data[:headerSize])
	if err != nil {
		sub.close()
		return nil, fmt.Errorf("kinbaku: open %s: %w", path, err)
	}
	// The on-disk layout (maxKeyLen) always wins over Options for an
	// existing file, matching Options.MaxKeyLen's documented behavior.
	l = newLayout(header.maxKeyLen)

	g := &Graph{
		path:     path,
		sub:      sub,
		header:   header,
		layout:   l,
		opts:     opts,
		hashFunc: opts.HashFunc,
		cache:    newCaches(opts.CacheSize),
	}

	if !isNew {
		g.findTombstones()
	}

	return g, nil
}

// findTombstones rebuilds the in-memory free lists by scanning the
// table once at open time, since tombstones (unlike the header) are not
// persisted. Mirrors graph.py's find_tombstones, but tests the record's
// `exists` bit directly rather than replicating the original's
// incidental zero-byte probe.
func (g *Graph) findTombstones() {
	position := uint64(0)
	for position < g.header.nextTablePosition {
		off := headerSize + g.layout.slotOffset(position)
		if int64(len(g.sub.data)) < off+int64(g.layout.edgeSize) {
			break
		}
		slot := g.sub.data[off : off+int64(g.layout.edgeSize)]
		if isNodeSlot(slot) {
			if position != 0 {
				n := g.layout.decodeNode(g.sub.data[off : off+int64(g.layout.nodeSpan())])
				if !n.exists {
					g.nodeFree = append(g.nodeFree, position)
				}
			}
			position += uint64(g.layout.ratio)
		} else {
			e := decodeEdge(slot)
			if !e.exists {
				g.edgeFree = append(g.edgeFree, position)
			}
			position++
		}
	}
}

// Close unmaps and closes the backing file.
func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	releaseProcessLock(g.path)
	return g.sub.close()
}

func (g *Graph) checkWritable() error {
	if g.closed {
		return ErrClosed
	}
	if g.opts.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// --- node operations ---------------------------------------------------

func (g *Graph) nodeByKey(key string) (nodeRecord, error) {
	if g.closed {
		return nodeRecord{}, ErrClosed
	}
	if uint32(len(key)) > g.layout.maxKeyLen {
		return nodeRecord{}, fmt.Errorf("kinbaku: key %q: %w", key, ErrKeyTooLong)
	}
	if pos, ok := g.cache.keyToPos.Get(key); ok {
		if n, ok := g.cache.posToNode.Get(pos); ok {
			return n, nil
		}
	}
	hash := g.hashFunc(key)
	n, state := g.findNodePos(0, hash, key)
	if state == 0 {
		g.cache.put(n)
		return n, nil
	}
	return nodeRecord{}, fmt.Errorf("kinbaku: node %q: %w", key, ErrNodeNotFound)
}

// addNode creates a node for key if it does not already exist. Mirrors
// graph.py's add_node, simplified to skip the "overwrite existing node
// with new index/attrs" path: since this port exposes no per-node
// attributes, re-adding an existing key is a pure no-op rather than
// stomping its index (see DESIGN.md).
func (g *Graph) addNode(key string) (nodeRecord, error) {
	if uint32(len(key)) > g.layout.maxKeyLen {
		return nodeRecord{}, fmt.Errorf("kinbaku: key %q: %w", key, ErrKeyTooLong)
	}
	keyHash := g.hashFunc(key)

	position := uint64(0)
	if pos, ok := g.cache.keyToPos.Get(key); ok {
		position = pos
	}
	prev, state := g.findNodePos(position, keyHash, key)
	if state == 0 {
		return prev, nil
	}

	// Node and edge positions must be allocated with incrementNode's bump
	// of next_table_position applied in between, not both read from the
	// bump pointer before either increment runs: graph.py's add_node
	// allocates the node position, increments, THEN allocates the edge
	// position from the now-advanced pointer. Doing both allocations
	// first would hand the node and its edge-start dummy the same slot
	// whenever neither is a recycled tombstone.
	index := g.header.nodeID
	newPos, nodeRecycled := g.nextNodePosition()
	if err := g.incrementNode(nodeRecycled); err != nil {
		return nodeRecord{}, err
	}
	edgePos, edgeRecycled := g.nextEdgePosition()
	if err := g.incrementEdge(edgeRecycled); err != nil {
		return nodeRecord{}, err
	}

	newNode := nodeRecord{
		exists:    true,
		hash:      keyHash,
		key:       key,
		index:     index,
		position:  newPos,
		parent:    prev.position,
		edgeStart: edgePos,
	}
	g.setNodeAt(newNode, newPos)

	dummy := edgeRecord{
		exists:      true,
		isEdgeStart: true,
		source:      newPos,
		hash:        keyHash,
		position:    edgePos,
	}
	g.setEdgeAt(dummy, edgePos)

	if state == -1 {
		prev.left = newPos
	} else {
		prev.right = newPos
	}
	g.setNodeAt(prev, prev.position)

	return newNode, nil
}

func (g *Graph) ensureNode(key string) (nodeRecord, error) {
	n, err := g.nodeByKey(key)
	if errors.Is(err, ErrNodeNotFound) {
		return g.addNode(key)
	}
	return n, err
}

// AddNode ensures a node for key exists, creating it if necessary.
func (g *Graph) AddNode(key string) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	_, err := g.ensureNode(key)
	return err
}

// Node returns the node identified by key.
func (g *Graph) Node(key string) (NodeView, error) {
	n, err := g.nodeByKey(key)
	if err != nil {
		return NodeView{}, err
	}
	return NodeView{Key: n.key, Hash: n.hash, Index: n.index}, nil
}

// HasNode reports whether key names an existing node.
func (g *Graph) HasNode(key string) bool {
	_, err := g.nodeByKey(key)
	return err == nil
}

// Contains is an alias for HasNode, matching graph.py's __contains__.
func (g *Graph) Contains(key string) bool { return g.HasNode(key) }

// removeNode removes a node and all of its incident edges. Mirrors
// graph.py's remove_node.
func (g *Graph) removeNode(n nodeRecord) error {
	start := g.getEdgeAt(n.edgeStart)

	var toRemove []edgeRecord
	g.edgeOutDFS(start, func(e edgeRecord) bool { toRemove = append(toRemove, e); return true })
	g.edgeInDFS(start, func(e edgeRecord) bool { toRemove = append(toRemove, e); return true })

	for _, stale := range toRemove {
		fresh := g.getEdgeAt(stale.position)
		if !fresh.exists {
			continue
		}
		if err := g.removeEdgeRecord(fresh); err != nil {
			return err
		}
	}

	if err := g.removeNodeFromTree(n); err != nil {
		return err
	}
	return g.eraseNode(n)
}

// RemoveNode removes the node identified by key, along with every edge
// incident to it.
func (g *Graph) RemoveNode(key string) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	n, err := g.nodeByKey(key)
	if err != nil {
		return err
	}
	return g.removeNode(n)
}

// --- edge operations ----------------------------------------------------

// Edge returns the edge from source to target with the given type.
func (g *Graph) Edge(sourceKey, targetKey string, edgeType uint32) (EdgeView, error) {
	source, err := g.nodeByKey(sourceKey)
	if err != nil {
		return EdgeView{}, err
	}
	target, err := g.nodeByKey(targetKey)
	if err != nil {
		return EdgeView{}, err
	}
	search := edgeRecord{
		source: source.position,
		target: target.position,
		hash:   edgeHash(g.hashFunc, source.hash, target.hash, edgeType),
		typ:    edgeType,
	}
	found, state := g.findEdgeOutPos(source.edgeStart, search)
	if state != 0 {
		return EdgeView{}, fmt.Errorf("kinbaku: edge %s->%s: %w", sourceKey, targetKey, ErrEdgeNotFound)
	}
	return EdgeView{Source: sourceKey, Target: targetKey, Type: found.typ, Hash: found.hash}, nil
}

// HasEdge reports whether the given edge exists.
func (g *Graph) HasEdge(sourceKey, targetKey string, edgeType uint32) bool {
	_, err := g.Edge(sourceKey, targetKey, edgeType)
	return err == nil
}

// AddEdge creates the edge sourceKey -> targetKey with the given type,
// creating either endpoint node if it does not already exist. Mirrors
// graph.py's add_edge.
func (g *Graph) AddEdge(sourceKey, targetKey string, edgeType uint32) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	source, err := g.ensureNode(sourceKey)
	if err != nil {
		return err
	}
	target, err := g.ensureNode(targetKey)
	if err != nil {
		return err
	}

	newEdge := edgeRecord{
		source: source.position,
		target: target.position,
		hash:   edgeHash(g.hashFunc, source.hash, target.hash, edgeType),
		typ:    edgeType,
	}

	prevOut, state := g.findEdgeOutPos(source.edgeStart, newEdge)
	if state == 0 {
		return nil // edge already exists; no attributes to update
	}

	newPos, recycled := g.nextEdgePosition()
	newEdge.position = newPos
	newEdge.exists = true

	if state == -1 {
		prevOut.outLeft = newPos
	} else {
		prevOut.outRight = newPos
	}
	g.setEdgeAt(prevOut, prevOut.position)

	prevIn, stateIn := g.findEdgeInPos(target.edgeStart, newEdge)
	switch stateIn {
	case -1:
		prevIn.inLeft = newPos
	case 1:
		prevIn.inRight = newPos
	default:
		return ErrIntegrity
	}
	g.setEdgeAt(prevIn, prevIn.position)

	newEdge.outParent = prevOut.position
	newEdge.inParent = prevIn.position
	g.setEdgeAt(newEdge, newPos)

	return g.incrementEdge(recycled)
}

func (g *Graph) removeEdgeRecord(e edgeRecord) error {
	if err := g.removeEdgeFromTree(e, true); err != nil {
		return err
	}
	if err := g.removeEdgeFromTree(e, false); err != nil {
		return err
	}
	return g.eraseEdgeAt(e.position)
}

// RemoveEdge removes the edge sourceKey -> targetKey with the given
// type.
func (g *Graph) RemoveEdge(sourceKey, targetKey string, edgeType uint32) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	source, err := g.nodeByKey(sourceKey)
	if err != nil {
		return err
	}
	target, err := g.nodeByKey(targetKey)
	if err != nil {
		return err
	}
	search := edgeRecord{
		source: source.position,
		target: target.position,
		hash:   edgeHash(g.hashFunc, source.hash, target.hash, edgeType),
		typ:    edgeType,
	}
	found, state := g.findEdgeOutPos(source.edgeStart, search)
	if state != 0 {
		return fmt.Errorf("kinbaku: edge %s->%s: %w", sourceKey, targetKey, ErrEdgeNotFound)
	}
	return g.removeEdgeRecord(found)
}

// --- adjacency ------------------------------------------------------------

// Neighbors returns the keys of all nodes v such that (u, v) is an edge.
func (g *Graph) Neighbors(u string) ([]string, error) {
	n, err := g.nodeByKey(u)
	if err != nil {
		return nil, err
	}
	start := g.getEdgeAt(n.edgeStart)
	var out []string
	g.edgeOutDFS(start, func(e edgeRecord) bool {
		target := g.getNodeAt(e.target)
		out = append(out, target.key)
		return true
	})
	return out, nil
}

// Predecessors returns the keys of all nodes u such that (u, v) is an
// edge.
func (g *Graph) Predecessors(v string) ([]string, error) {
	n, err := g.nodeByKey(v)
	if err != nil {
		return nil, err
	}
	start := g.getEdgeAt(n.edgeStart)
	var in []string
	g.edgeInDFS(start, func(e edgeRecord) bool {
		source := g.getNodeAt(e.source)
		in = append(in, source.key)
		return true
	})
	return in, nil
}

// OutDegree returns the number of outgoing edges of key.
func (g *Graph) OutDegree(key string) (int, error) {
	nb, err := g.Neighbors(key)
	if err != nil {
		return 0, err
	}
	return len(nb), nil
}

// InDegree returns the number of incoming edges of key.
func (g *Graph) InDegree(key string) (int, error) {
	pr, err := g.Predecessors(key)
	if err != nil {
		return 0, err
	}
	return len(pr), nil
}

// SetNeighbors replaces u's out-edges (all of type 0) with exactly the
// given set of targets, adding and removing edges as needed. Mirrors
// graph.py's set_neighbors.
func (g *Graph) SetNeighbors(u string, targets []string) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if err := g.AddNode(u); err != nil {
		return err
	}
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	have, err := g.Neighbors(u)
	if err != nil {
		return err
	}
	haveSet := make(map[string]bool, len(have))
	for _, v := range have {
		haveSet[v] = true
	}
	for v := range haveSet {
		if !want[v] {
			if err := g.RemoveEdge(u, v, 0); err != nil {
				return err
			}
		}
	}
	for v := range want {
		if !haveSet[v] {
			if err := g.AddEdge(u, v, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetPredecessors replaces v's in-edges (all of type 0) with exactly the
// given set of sources. Mirrors graph.py's set_predecessors.
func (g *Graph) SetPredecessors(v string, sources []string) error {
	if err := g.checkWritable(); err != nil {
		return err
	}
	if err := g.AddNode(v); err != nil {
		return err
	}
	want := make(map[string]bool, len(sources))
	for _, u := range sources {
		want[u] = true
	}
	have, err := g.Predecessors(v)
	if err != nil {
		return err
	}
	haveSet := make(map[string]bool, len(have))
	for _, u := range have {
		haveSet[u] = true
	}
	for u := range haveSet {
		if !want[u] {
			if err := g.RemoveEdge(u, v, 0); err != nil {
				return err
			}
		}
	}
	for u := range want {
		if !haveSet[u] {
			if err := g.AddEdge(u, v, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// NeighborsBatch returns the neighbor list of every key in keys, in
// order. Mirrors graph.py's neighbors_from (which, despite its name,
// batches plain Neighbors calls over a list of keys).
func (g *Graph) NeighborsBatch(keys []string) ([][]string, error) {
	out := make([][]string, len(keys))
	for i, k := range keys {
		nb, err := g.Neighbors(k)
		if err != nil {
			return nil, err
		}
		out[i] = nb
	}
	return out, nil
}

// PredecessorsBatch returns the predecessor list of every key in keys,
// in order. Mirrors graph.py's predecessors_from.
func (g *Graph) PredecessorsBatch(keys []string) ([][]string, error) {
	out := make([][]string, len(keys))
	for i, k := range keys {
		pr, err := g.Predecessors(k)
		if err != nil {
			return nil, err
		}
		out[i] = pr
	}
	return out, nil
}

// CommonNeighbors returns the set of keys that are neighbors of both u
// and v.
func (g *Graph) CommonNeighbors(u, v string) ([]string, error) {
	uNb, err := g.Neighbors(u)
	if err != nil {
		return nil, err
	}
	vNb, err := g.Neighbors(v)
	if err != nil {
		return nil, err
	}
	return intersect(uNb, vNb), nil
}

// CommonPredecessors returns the set of keys that are predecessors of
// both u and v.
func (g *Graph) CommonPredecessors(u, v string) ([]string, error) {
	uPr, err := g.Predecessors(u)
	if err != nil {
		return nil, err
	}
	vPr, err := g.Predecessors(v)
	if err != nil {
		return nil, err
	}
	return intersect(uPr, vPr), nil
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	var out []string
	seen := make(map[string]bool, len(b))
	for _, x := range b {
		if set[x] && !seen[x] {
			out = append(out, x)
			seen[x] = true
		}
	}
	return out
}

// --- whole-graph views ----------------------------------------------------

// Len returns the number of live nodes and edges. The sentinel root and
// per-node edge-start dummies are excluded, matching graph.py's
// n_nodes/n_edges properties.
func (g *Graph) Len() (nodes, edges int) {
	return int(g.header.nNodes), int(g.header.nEdges) - int(g.header.nNodes)
}

// Nodes returns an iterator over every node key in the graph, in a
// pre-order walk of the node-BST (root, left subtree, right subtree),
// which is not sorted order. Mirrors graph.py's `nodes` property (_node_dfs),
// reshaped into a Go range-over-func iterator.
func (g *Graph) Nodes() iter.Seq[string] {
	return func(yield func(string) bool) {
		root := g.getNodeAt(0)
		g.nodeDFS(root, func(n nodeRecord) bool { return yield(n.key) })
	}
}

// OutEdges returns an iterator over every outgoing edge of key, in
// edge-BST order. Mirrors graph.py's _edge_out_dfs.
func (g *Graph) OutEdges(key string) (iter.Seq[EdgeView], error) {
	n, err := g.nodeByKey(key)
	if err != nil {
		return nil, err
	}
	return func(yield func(EdgeView) bool) {
		start := g.getEdgeAt(n.edgeStart)
		g.edgeOutDFS(start, func(e edgeRecord) bool {
			target := g.getNodeAt(e.target)
			return yield(EdgeView{Source: key, Target: target.key, Type: e.typ, Hash: e.hash})
		})
	}, nil
}

// InEdges returns an iterator over every incoming edge of key, in
// edge-BST order. Mirrors graph.py's _edge_in_dfs.
func (g *Graph) InEdges(key string) (iter.Seq[EdgeView], error) {
	n, err := g.nodeByKey(key)
	if err != nil {
		return nil, err
	}
	return func(yield func(EdgeView) bool) {
		start := g.getEdgeAt(n.edgeStart)
		g.edgeInDFS(start, func(e edgeRecord) bool {
			source := g.getNodeAt(e.source)
			return yield(EdgeView{Source: source.key, Target: key, Type: e.typ, Hash: e.hash})
		})
	}, nil
}

// BatchNodes returns up to batchSize live nodes starting at cursor (a
// slot position), and the cursor to resume from on the next call, or
// ^uint64(0) once the end of the table is reached. Mirrors graph.py's
// batch_get_nodes.
func (g *Graph) BatchNodes(batchSize int, cursor uint64) ([]NodeView, uint64, error) {
	if batchSize <= 0 || batchSize > maxBatchSize {
		return nil, 0, fmt.Errorf("kinbaku: batch size %d out of range", batchSize)
	}
	position := cursor
	var out []NodeView
	next := g.header.nextTablePosition
	for position <= next && len(out) < batchSize {
		off := headerSize + g.layout.slotOffset(position)
		slot := g.sub.data[off : off+int64(g.layout.edgeSize)]
		if isNodeSlot(slot) {
			if position == 0 {
				position += uint64(g.layout.ratio)
				continue
			}
			n := g.getNodeAt(position)
			if n.exists {
				out = append(out, NodeView{Key: n.key, Hash: n.hash, Index: n.index})
			}
			position += uint64(g.layout.ratio)
		} else {
			position++
		}
	}
	if position > next {
		return out, ^uint64(0), nil
	}
	return out, position, nil
}

// BatchEdges returns up to batchSize live edges starting at cursor, and
// the cursor to resume from, or ^uint64(0) at the end. Mirrors
// graph.py's batch_get_edges.
func (g *Graph) BatchEdges(batchSize int, cursor uint64) ([]EdgeView, uint64, error) {
	if batchSize <= 0 || batchSize > maxBatchSize {
		return nil, 0, fmt.Errorf("kinbaku: batch size %d out of range", batchSize)
	}
	position := cursor
	var out []EdgeView
	next := g.header.nextTablePosition
	for position <= next && len(out) < batchSize {
		off := headerSize + g.layout.slotOffset(position)
		slot := g.sub.data[off : off+int64(g.layout.edgeSize)]
		if isNodeSlot(slot) {
			position += uint64(g.layout.ratio)
			continue
		}
		e := decodeEdge(slot)
		if !e.exists {
			position++
			continue
		}
		if e.isEdgeStart {
			position++
			continue
		}
		source := g.getNodeAt(e.source)
		target := g.getNodeAt(e.target)
		out = append(out, EdgeView{Source: source.key, Target: target.key, Type: e.typ, Hash: e.hash})
		position++
	}
	if position > next {
		return out, ^uint64(0), nil
	}
	return out, position, nil
}
