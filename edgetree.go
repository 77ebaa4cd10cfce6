package kinbaku

// compareEdges orders two edges lexicographically on (hash, source,
// target, type), the ordering spec.md documents for the edge-BSTs.
// original_source/kinbaku/utils.py's compare_edges implements this same
// ordering but its "targets equal" branch has an inconsistent tiebreak
// once hashes collide and sources differ; we follow the documented
// lexicographic order rather than that quirk.
func compareEdges(a, b edgeRecord) int {
	if a.hash == b.hash && a.source == b.source && a.target == b.target && a.typ == b.typ {
		return 0
	}
	switch {
	case b.hash != a.hash:
		if b.hash < a.hash {
			return -1
		}
		return 1
	case b.source != a.source:
		if b.source < a.source {
			return -1
		}
		return 1
	case b.target != a.target:
		if b.target < a.target {
			return -1
		}
		return 1
	default:
		if b.typ < a.typ {
			return -1
		}
		return 1
	}
}

// findEdgeOutPos descends a node's out-tree (rooted at its edge-start
// dummy) looking for newEdge. Mirrors graph.py's _find_edge_out_pos.
func (g *Graph) findEdgeOutPos(position uint64, newEdge edgeRecord) (edgeRecord, int) {
	current := g.getEdgeAt(position)
	state := 0
	for {
		state = compareEdges(current, newEdge)
		switch state {
		case -1:
			if current.outLeft != 0 {
				current = g.getEdgeAt(current.outLeft)
				continue
			}
		case 1:
			if current.outRight != 0 {
				current = g.getEdgeAt(current.outRight)
				continue
			}
		}
		break
	}
	return current, state
}

// findEdgeInPos descends a node's in-tree. Mirrors
// graph.py's _find_edge_in_pos.
func (g *Graph) findEdgeInPos(position uint64, newEdge edgeRecord) (edgeRecord, int) {
	current := g.getEdgeAt(position)
	state := 0
	for {
		state = compareEdges(current, newEdge)
		switch state {
		case -1:
			if current.inLeft != 0 {
				current = g.getEdgeAt(current.inLeft)
				continue
			}
		case 1:
			if current.inRight != 0 {
				current = g.getEdgeAt(current.inRight)
				continue
			}
		}
		break
	}
	return current, state
}

// findInorderSuccessorEdge returns the in-order successor of edge in the
// given direction's tree, and the parent reached along the way.
// Mirrors graph.py's _find_inorder_successor_edge.
func (g *Graph) findInorderSuccessorEdge(edge edgeRecord, out bool) (successor, antecedent edgeRecord) {
	var rightPos uint64
	if out {
		rightPos = edge.outRight
	} else {
		rightPos = edge.inRight
	}
	successor = g.getEdgeAt(rightPos)
	antecedent = edge
	for {
		left := successor.inLeft
		if out {
			left = successor.outLeft
		}
		if left == 0 {
			break
		}
		antecedent = successor
		successor = g.getEdgeAt(left)
	}
	return successor, antecedent
}

func (g *Graph) unplugEdge(parent edgeRecord, state int, out bool) {
	if state == -1 {
		if out {
			parent.outLeft = 0
		} else {
			parent.inLeft = 0
		}
	} else {
		if out {
			parent.outRight = 0
		} else {
			parent.inRight = 0
		}
	}
	g.setEdgeAt(parent, parent.position)
}

func (g *Graph) rewireEdge(parent, child edgeRecord, state int, out bool) {
	if state == -1 {
		if out {
			parent.outLeft = child.position
		} else {
			parent.inLeft = child.position
		}
	} else {
		if out {
			parent.outRight = child.position
		} else {
			parent.inRight = child.position
		}
	}
	if out {
		child.outParent = parent.position
	} else {
		child.inParent = parent.position
	}
	g.setEdgeAt(parent, parent.position)
	g.setEdgeAt(child, child.position)
}

// removeEdgeFromTree splices edge out of one of its two trees (out-tree
// when out is true, in-tree otherwise). remove_edge calls this twice,
// once per direction, since every edge record is a member of both its
// source's out-tree and its target's in-tree through disjoint field
// groups. Mirrors graph.py's _remove_edge_from_tree, the "fully
// consistent variant" spec.md calls for in the two-children case.
func (g *Graph) removeEdgeFromTree(edge edgeRecord, out bool) error {
	var edgeLeft, edgeRight, parentPos uint64
	if out {
		edgeLeft, edgeRight, parentPos = edge.outLeft, edge.outRight, edge.outParent
	} else {
		edgeLeft, edgeRight, parentPos = edge.inLeft, edge.inRight, edge.inParent
	}
	parent := g.getEdgeAt(parentPos)
	state := compareEdges(parent, edge)

	switch {
	case edgeLeft == 0 && edgeRight == 0:
		g.unplugEdge(parent, state, out)
	case edgeLeft == 0:
		child := g.getEdgeAt(edgeRight)
		g.rewireEdge(parent, child, state, out)
	case edgeRight == 0:
		child := g.getEdgeAt(edgeLeft)
		g.rewireEdge(parent, child, state, out)
	default:
		successor, antecedent := g.findInorderSuccessorEdge(edge, out)

		setLeft := func(e *edgeRecord, v uint64) {
			if out {
				e.outLeft = v
			} else {
				e.inLeft = v
			}
		}
		setRight := func(e *edgeRecord, v uint64) {
			if out {
				e.outRight = v
			} else {
				e.inRight = v
			}
		}
		setParent := func(e *edgeRecord, v uint64) {
			if out {
				e.outParent = v
			} else {
				e.inParent = v
			}
		}

		setLeft(&antecedent, 0)
		setParent(&successor, parent.position)
		if state == -1 {
			setLeft(&parent, successor.position)
		} else {
			setRight(&parent, successor.position)
		}

		if antecedent.position == edge.position {
			setLeft(&successor, edgeLeft)
			leftChild := g.getEdgeAt(edgeLeft)
			setParent(&leftChild, successor.position)
			g.setEdgeAt(leftChild, edgeLeft)
			g.setEdgeAt(successor, successor.position)
			g.setEdgeAt(parent, parent.position)
		} else {
			setLeft(&successor, edgeLeft)
			leftChild := g.getEdgeAt(edgeLeft)
			setParent(&leftChild, successor.position)
			g.setEdgeAt(leftChild, edgeLeft)

			if edgeRight == antecedent.position {
				setParent(&antecedent, successor.position)
			} else {
				rightChild := g.getEdgeAt(edgeRight)
				setParent(&rightChild, successor.position)
				g.setEdgeAt(rightChild, edgeRight)
			}

			var successorRightPos uint64
			if out {
				successorRightPos = successor.outRight
			} else {
				successorRightPos = successor.inRight
			}
			setLeft(&antecedent, successorRightPos)
			g.setEdgeAt(antecedent, antecedent.position)
			if successorRightPos != 0 {
				successorRight := g.getEdgeAt(successorRightPos)
				setParent(&successorRight, antecedent.position)
				g.setEdgeAt(successorRight, successorRightPos)
			}

			setRight(&successor, edgeRight)
			g.setEdgeAt(successor, successor.position)
			g.setEdgeAt(parent, parent.position)
		}
	}
	return nil
}

// edgeOutDFS walks a node's out-tree in order (left, self, right),
// skipping the edge-start dummy. Mirrors graph.py's _edge_out_dfs.
func (g *Graph) edgeOutDFS(edge edgeRecord, yield func(edgeRecord) bool) bool {
	if edge.outLeft != 0 {
		if !g.edgeOutDFS(g.getEdgeAt(edge.outLeft), yield) {
			return false
		}
	}
	if !edge.isEdgeStart {
		if !yield(edge) {
			return false
		}
	}
	if edge.outRight != 0 {
		if !g.edgeOutDFS(g.getEdgeAt(edge.outRight), yield) {
			return false
		}
	}
	return true
}

// edgeInDFS walks a node's in-tree in order (left, self, right),
// skipping the edge-start dummy. Mirrors graph.py's _edge_in_dfs.
func (g *Graph) edgeInDFS(edge edgeRecord, yield func(edgeRecord) bool) bool {
	if edge.inLeft != 0 {
		if !g.edgeInDFS(g.getEdgeAt(edge.inLeft), yield) {
			return false
		}
	}
	if !edge.isEdgeStart {
		if !yield(edge) {
			return false
		}
	}
	if edge.inRight != 0 {
		if !g.edgeInDFS(g.getEdgeAt(edge.inRight), yield) {
			return false
		}
	}
	return true
}
