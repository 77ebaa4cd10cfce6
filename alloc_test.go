package kinbaku

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openForAllocTest(t *testing.T) *Graph {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alloc.kb")
	g, err := Open(path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func Test_RemoveNode_Recycles_Its_Slots_For_The_Next_AddNode(t *testing.T) {
	g := openForAllocTest(t)

	_, err := g.addNode("alice")
	require.NoError(t, err)
	alice, err := g.nodeByKey("alice")
	require.NoError(t, err)

	require.NoError(t, g.removeNode(alice))
	assert.Len(t, g.nodeFree, 1)
	assert.Equal(t, alice.position, g.nodeFree[0])

	bumpBefore := g.header.nextTablePosition
	_, err = g.addNode("bob")
	require.NoError(t, err)

	assert.Empty(t, g.nodeFree)
	assert.Equal(t, bumpBefore, g.header.nextTablePosition)

	bob, err := g.nodeByKey("bob")
	require.NoError(t, err)
	assert.Equal(t, alice.position, bob.position)
}

func Test_RemoveEdge_Recycles_Its_Slot_For_The_Next_AddEdge(t *testing.T) {
	g := openForAllocTest(t)

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	source, err := g.nodeByKey("alice")
	require.NoError(t, err)
	target, err := g.nodeByKey("bob")
	require.NoError(t, err)

	search := edgeRecord{
		source: source.position,
		target: target.position,
		hash:   edgeHash(g.hashFunc, source.hash, target.hash, 0),
		typ:    0,
	}
	found, state := g.findEdgeOutPos(source.edgeStart, search)
	require.Equal(t, 0, state)

	require.NoError(t, g.removeEdgeRecord(found))
	require.Len(t, g.edgeFree, 1)
	assert.Equal(t, found.position, g.edgeFree[0])

	require.NoError(t, g.AddEdge("alice", "carol", 0))
	assert.Empty(t, g.edgeFree)
}

func Test_Expand_Grows_The_Table_Once_NextTablePosition_Nears_TableSize(t *testing.T) {
	g := openForAllocTest(t)
	// Shrink table_size artificially, forcing it close to
	// next_table_position so the very next allocation must trigger grow().
	g.header.tableSize = g.header.nextTablePosition + g.header.tableIncrement/20
	before := g.header.tableSize

	_, err := g.addNode("alice")
	require.NoError(t, err)

	assert.Greater(t, g.header.tableSize, before)
}
