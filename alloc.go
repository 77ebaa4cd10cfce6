package kinbaku

import "fmt"

// nextNodePosition returns the slot to use for a new node: a recycled
// tombstone if one is free, otherwise the current bump pointer. Mirrors
// graph.py's _get_next_node_position (FIFO pop(0) on the tombstone
// list).
func (g *Graph) nextNodePosition() (uint64, bool) {
	if len(g.nodeFree) == 0 {
		return g.header.nextTablePosition, false
	}
	pos := g.nodeFree[0]
	g.nodeFree = g.nodeFree[1:]
	return pos, true
}

func (g *Graph) nextEdgePosition() (uint64, bool) {
	if len(g.edgeFree) == 0 {
		return g.header.nextTablePosition, false
	}
	pos := g.edgeFree[0]
	g.edgeFree = g.edgeFree[1:]
	return pos, true
}

func (g *Graph) freeNode(pos uint64) {
	g.nodeFree = append(g.nodeFree, pos)
}

func (g *Graph) freeEdge(pos uint64) {
	g.edgeFree = append(g.edgeFree, pos)
}

// incrementNode/incrementEdge/decrementNode/decrementEdge update the
// header counters after an allocation or a tombstone erase and then
// trigger expand(), matching graph.py's _increment_node/_increment_edge/
// _decrement_node/_decrement_edge.
func (g *Graph) incrementNode(recycled bool) error {
	g.header.nNodes++
	g.header.nodeID++
	if !recycled {
		g.header.nextTablePosition += uint64(g.layout.ratio)
	}
	return g.expand()
}

func (g *Graph) incrementEdge(recycled bool) error {
	g.header.nEdges++
	if !recycled {
		g.header.nextTablePosition++
	}
	return g.expand()
}

func (g *Graph) decrementNode() error {
	g.header.nNodes--
	return g.expand()
}

func (g *Graph) decrementEdge() error {
	g.header.nEdges--
	return g.expand()
}

// expand persists the header and, once next_table_position is within
// a tenth of table_increment of table_size, grows the file by one
// table_increment and remaps
// it. Mirrors graph.py's _expand exactly, including the threshold
// arithmetic (kept in integer form: next*10 <= tableSize*10 -
// tableIncrement).
func (g *Graph) expand() error {
	threshold := g.header.tableSize*10 - g.header.tableIncrement
	if g.header.nextTablePosition*10 <= threshold {
		g.writeHeader()
		return nil
	}

	if err := g.sub.grow(g.header.tableIncrement, g.layout.edgeSize); err != nil {
		return fmt.Errorf("kinbaku: grow table: %w", err)
	}
	g.header.tableSize += g.header.tableIncrement
	g.writeHeader()
	return nil
}

func (g *Graph) writeHeader() {
	copy(g.sub.data[:headerSize], encodeHeader(&g.header))
}
