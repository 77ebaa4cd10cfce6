package kinbaku

// getNodeAt reads the node record at the given slot, consulting (and
// populating) the position->node cache. Mirrors graph.py's
// _get_node_at.
func (g *Graph) getNodeAt(pos uint64) nodeRecord {
	if n, ok := g.cache.posToNode.Get(pos); ok {
		return n
	}
	off := headerSize + g.layout.slotOffset(pos)
	buf := g.sub.data[off : off+int64(g.layout.nodeSpan())]
	n := g.layout.decodeNode(buf)
	g.cache.put(n)
	return n
}

// getNodeTreeInfoAt reads only the (exists, hash, left, right) prefix of
// a node record, the fast path used while descending the node-BST.
// Mirrors graph.py's _get_node_tree_info_at.
func (g *Graph) getNodeTreeInfoAt(pos uint64) nodeTreeInfo {
	if info, ok := g.cache.posToTree.Get(pos); ok {
		return info
	}
	off := headerSize + g.layout.slotOffset(pos)
	buf := g.sub.data[off : off+nodeTreeInfoSize]
	info := decodeNodeTreeInfo(buf)
	g.cache.posToTree.Add(pos, info)
	return info
}

// getEdgeAt reads the edge record at the given slot. Edges are not
// cached individually in the original design (only nodes get the
// four-way cache); every read goes to the mapped bytes.
func (g *Graph) getEdgeAt(pos uint64) edgeRecord {
	off := headerSize + g.layout.slotOffset(pos)
	buf := g.sub.data[off : off+int64(edgeRecordSize)]
	return decodeEdge(buf)
}

// setNodeAt writes a node record at the given slot and refreshes the
// caches. Mirrors graph.py's _set_node_at.
func (g *Graph) setNodeAt(n nodeRecord, pos uint64) {
	n.position = pos
	off := headerSize + g.layout.slotOffset(pos)
	buf := g.layout.encodeNode(&n)
	copy(g.sub.data[off:off+int64(len(buf))], buf)
	g.cache.put(n)
}

// setEdgeAt writes an edge record at the given slot. Mirrors graph.py's
// _set_edge_at.
func (g *Graph) setEdgeAt(e edgeRecord, pos uint64) {
	e.position = pos
	off := headerSize + g.layout.slotOffset(pos)
	buf := encodeEdge(&e)
	copy(g.sub.data[off:off+int64(len(buf))], buf)
}

// eraseEdgeAt zeroes an edge slot and returns it to the free list.
// Mirrors graph.py's _erase_edge_at.
func (g *Graph) eraseEdgeAt(pos uint64) error {
	off := headerSize + g.layout.slotOffset(pos)
	zero := make([]byte, edgeRecordSize)
	copy(g.sub.data[off:off+int64(edgeRecordSize)], zero)
	g.freeEdge(pos)
	return g.decrementEdge()
}

// eraseNode zeroes a node's slots and its edge-start dummy, and returns
// both to their respective free lists. Mirrors graph.py's _erase_node.
func (g *Graph) eraseNode(n nodeRecord) error {
	g.cache.evict(n)

	off := headerSize + g.layout.slotOffset(n.position)
	zero := make([]byte, g.layout.nodeSpan())
	copy(g.sub.data[off:off+int64(len(zero))], zero)
	g.freeNode(n.position)
	if err := g.decrementNode(); err != nil {
		return err
	}

	edgeOff := headerSize + g.layout.slotOffset(n.edgeStart)
	zeroEdge := make([]byte, edgeRecordSize)
	copy(g.sub.data[edgeOff:edgeOff+int64(edgeRecordSize)], zeroEdge)
	g.freeEdge(n.edgeStart)
	return g.decrementEdge()
}
