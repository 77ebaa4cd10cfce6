package kinbaku

// compareNodes orders two nodes lexicographically on (hash, key). The
// caller has typically already compared hashes via the tree-info fast
// path; this handles the key tiebreak, matching
// original_source/kinbaku/utils.py's compare_nodes.
func compareNodes(currentKey, newKey string) int {
	switch {
	case newKey < currentKey:
		return -1
	case newKey > currentKey:
		return 1
	default:
		return 0
	}
}

// findNodePos descends the global node-BST from position, looking for
// (newHash, newKey). It returns the node at the point the descent
// stopped and a state: -1/1 mean "would be inserted as the left/right
// child of the returned node", 0 means an exact match. Mirrors
// graph.py's _find_node_pos, using the tree-info fast path to avoid a
// full record decode at every hop.
func (g *Graph) findNodePos(position uint64, newHash uint32, newKey string) (nodeRecord, int) {
	info := g.getNodeTreeInfoAt(position)
	state := 0
	for {
		switch {
		case newHash < info.hash:
			state = -1
		case newHash > info.hash:
			state = 1
		default:
			current := g.getNodeAt(position)
			state = compareNodes(current.key, newKey)
		}

		switch state {
		case -1:
			if info.left != 0 {
				position = info.left
				info = g.getNodeTreeInfoAt(position)
				continue
			}
		case 1:
			if info.right != 0 {
				position = info.right
				info = g.getNodeTreeInfoAt(position)
				continue
			}
		}
		break
	}
	return g.getNodeAt(position), state
}

// findInorderSuccessorNode returns the in-order successor of node (the
// leftmost descendant of node.right) along with its immediate parent in
// that descent ("antecedent"), matching
// graph.py's _find_inorder_successor_node.
func (g *Graph) findInorderSuccessorNode(node nodeRecord) (successor, antecedent nodeRecord) {
	successor = g.getNodeAt(node.right)
	antecedent = node
	for successor.left != 0 {
		antecedent = successor
		successor = g.getNodeAt(successor.left)
	}
	return successor, antecedent
}

func (g *Graph) unplugNode(parent nodeRecord, state int) {
	if state == -1 {
		parent.left = 0
	} else {
		parent.right = 0
	}
	g.setNodeAt(parent, parent.position)
}

func (g *Graph) rewireNode(parent, child nodeRecord, state int) {
	if state == -1 {
		parent.left = child.position
	} else {
		parent.right = child.position
	}
	child.parent = parent.position
	g.setNodeAt(parent, parent.position)
	g.setNodeAt(child, child.position)
}

// removeNodeFromTree splices node out of the global node-BST, handling
// the classical three deletion cases (no children, one child, two
// children with in-order-successor splicing). Mirrors graph.py's
// _remove_node_from_tree, including both two-child sub-cases ("a":
// antecedent is the node being removed, "b": antecedent is further
// down).
func (g *Graph) removeNodeFromTree(node nodeRecord) error {
	parent := g.getNodeAt(node.parent)

	var state int
	switch {
	case parent.left == node.position:
		state = -1
	case parent.right == node.position:
		state = 1
	default:
		return ErrIntegrity
	}

	nodeLeft, nodeRight := node.left, node.right

	switch {
	case nodeLeft == 0 && nodeRight == 0:
		g.unplugNode(parent, state)
	case nodeLeft == 0:
		child := g.getNodeAt(nodeRight)
		g.rewireNode(parent, child, state)
	case nodeRight == 0:
		child := g.getNodeAt(nodeLeft)
		g.rewireNode(parent, child, state)
	default:
		successor, antecedent := g.findInorderSuccessorNode(node)
		antecedent.left = 0
		successor.parent = parent.position
		if state == -1 {
			parent.left = successor.position
		} else {
			parent.right = successor.position
		}

		if antecedent.position == node.position {
			// case a: antecedent is the node being removed.
			successor.left = nodeLeft
			leftChild := g.getNodeAt(nodeLeft)
			leftChild.parent = successor.position
			g.setNodeAt(leftChild, nodeLeft)
			g.setNodeAt(successor, successor.position)
			g.setNodeAt(parent, parent.position)
		} else {
			// case b: antecedent is further down the right subtree.
			successor.left = nodeLeft
			leftChild := g.getNodeAt(nodeLeft)
			leftChild.parent = successor.position
			g.setNodeAt(leftChild, nodeLeft)

			if nodeRight == antecedent.position {
				antecedent.parent = successor.position
			} else {
				rightChild := g.getNodeAt(nodeRight)
				rightChild.parent = successor.position
				g.setNodeAt(rightChild, nodeRight)
			}

			successorRightPos := successor.right
			antecedent.left = successorRightPos
			g.setNodeAt(antecedent, antecedent.position)
			if successorRightPos != 0 {
				successorRight := g.getNodeAt(successorRightPos)
				successorRight.parent = antecedent.position
				g.setNodeAt(successorRight, successorRightPos)
			}

			successor.right = nodeRight
			g.setNodeAt(successor, successor.position)
			g.setNodeAt(parent, parent.position)
		}
	}
	return nil
}

// nodeDFS walks the node-BST in pre-order (root first, then left
// subtree, then right subtree — matching graph.py's
// _node_dfs), invoking yield for every node except the sentinel root
// (index 0). Stops early if yield returns false.
func (g *Graph) nodeDFS(node nodeRecord, yield func(nodeRecord) bool) bool {
	if node.index != 0 {
		if !yield(node) {
			return false
		}
	}
	if node.left != 0 {
		if !g.nodeDFS(g.getNodeAt(node.left), yield) {
			return false
		}
	}
	if node.right != 0 {
		if !g.nodeDFS(g.getNodeAt(node.right), yield) {
			return false
		}
	}
	return true
}
