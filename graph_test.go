package kinbaku_test

import (
	"errors"
	"math/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/kinbaku"
)

func openTestGraph(t *testing.T, opts kinbaku.Options) *kinbaku.Graph {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.kb")
	g, err := kinbaku.Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func Test_AddNode_Creates_Node_That_HasNode_Then_Reports(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddNode("alice"))
	assert.True(t, g.HasNode("alice"))
	assert.False(t, g.HasNode("bob"))

	n, err := g.Node("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", n.Key)
}

func Test_AddNode_Is_Idempotent_For_An_Existing_Key(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddNode("alice"))
	first, err := g.Node("alice")
	require.NoError(t, err)

	require.NoError(t, g.AddNode("alice"))
	second, err := g.Node("alice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func Test_Node_Returns_ErrNodeNotFound_For_Missing_Key(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	_, err := g.Node("ghost")
	assert.ErrorIs(t, err, kinbaku.ErrNodeNotFound)
}

func Test_AddNode_Returns_ErrKeyTooLong_When_Key_Exceeds_MaxKeyLen(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{MaxKeyLen: 4})

	err := g.AddNode("way-too-long")
	assert.ErrorIs(t, err, kinbaku.ErrKeyTooLong)
}

func Test_AddEdge_Creates_Both_Endpoints_And_Is_Visible_From_Both_Sides(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))

	assert.True(t, g.HasNode("alice"))
	assert.True(t, g.HasNode("bob"))
	assert.True(t, g.HasEdge("alice", "bob", 0))
	assert.False(t, g.HasEdge("bob", "alice", 0))

	nb, err := g.Neighbors("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, nb)

	pr, err := g.Predecessors("bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, pr)
}

func Test_AddEdge_Is_Idempotent_For_An_Existing_Edge(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("alice", "bob", 0))

	nb, err := g.Neighbors("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, nb)
}

func Test_AddEdge_Supports_Self_Loops(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "alice", 0))
	assert.True(t, g.HasEdge("alice", "alice", 0))

	nb, err := g.Neighbors("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, nb)

	pr, err := g.Predecessors("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, pr)
}

func Test_AddEdge_Supports_Multiple_Types_Between_Same_Endpoints(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("alice", "bob", 1))

	assert.True(t, g.HasEdge("alice", "bob", 0))
	assert.True(t, g.HasEdge("alice", "bob", 1))

	deg, err := g.OutDegree("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, deg)
}

func Test_RemoveEdge_Removes_Edge_Without_Affecting_Other_Edges(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("alice", "carol", 0))

	require.NoError(t, g.RemoveEdge("alice", "bob", 0))

	assert.False(t, g.HasEdge("alice", "bob", 0))
	assert.True(t, g.HasEdge("alice", "carol", 0))

	nb, err := g.Neighbors("alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, nb)
}

func Test_RemoveEdge_Returns_ErrEdgeNotFound_When_Edge_Missing(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})
	require.NoError(t, g.AddNode("alice"))
	require.NoError(t, g.AddNode("bob"))

	err := g.RemoveEdge("alice", "bob", 0)
	assert.ErrorIs(t, err, kinbaku.ErrEdgeNotFound)
}

func Test_RemoveNode_Removes_Node_And_All_Incident_Edges(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("carol", "alice", 0))
	require.NoError(t, g.AddEdge("alice", "alice", 0))

	require.NoError(t, g.RemoveNode("alice"))

	assert.False(t, g.HasNode("alice"))
	assert.True(t, g.HasNode("bob"))
	assert.True(t, g.HasNode("carol"))
	assert.False(t, g.HasEdge("alice", "bob", 0))
	assert.False(t, g.HasEdge("carol", "alice", 0))

	nb, err := g.Neighbors("carol")
	require.NoError(t, err)
	assert.Empty(t, nb)
}

func Test_RemoveNode_Returns_ErrNodeNotFound_For_Missing_Key(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	err := g.RemoveNode("ghost")
	assert.ErrorIs(t, err, kinbaku.ErrNodeNotFound)
}

func Test_SetNeighbors_Reconciles_OutEdges_To_Exactly_The_Given_Set(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("alice", "carol", 0))

	require.NoError(t, g.SetNeighbors("alice", []string{"carol", "dave"}))

	nb, err := g.Neighbors("alice")
	require.NoError(t, err)
	sort.Strings(nb)
	assert.Equal(t, []string{"carol", "dave"}, nb)
}

func Test_SetPredecessors_Reconciles_InEdges_To_Exactly_The_Given_Set(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("bob", "alice", 0))
	require.NoError(t, g.AddEdge("carol", "alice", 0))

	require.NoError(t, g.SetPredecessors("alice", []string{"carol", "dave"}))

	pr, err := g.Predecessors("alice")
	require.NoError(t, err)
	sort.Strings(pr)
	assert.Equal(t, []string{"carol", "dave"}, pr)
}

func Test_CommonNeighbors_Returns_Intersection_Of_Both_Neighbor_Sets(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "x", 0))
	require.NoError(t, g.AddEdge("alice", "y", 0))
	require.NoError(t, g.AddEdge("bob", "y", 0))
	require.NoError(t, g.AddEdge("bob", "z", 0))

	common, err := g.CommonNeighbors("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, common)
}

func Test_Len_Counts_Live_Nodes_And_Edges_Excluding_Sentinels(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("alice", "carol", 0))

	nodes, edges := g.Len()
	assert.Equal(t, 3, nodes)
	assert.Equal(t, 2, edges)
}

func Test_Nodes_Iterates_Every_Live_Node_Exactly_Once(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	keys := []string{"alice", "bob", "carol", "dave", "erin"}
	for _, k := range keys {
		require.NoError(t, g.AddNode(k))
	}

	var seen []string
	for key := range g.Nodes() {
		seen = append(seen, key)
	}

	sort.Strings(seen)
	sort.Strings(keys)
	assert.Equal(t, keys, seen)
}

func Test_Nodes_Stops_Early_When_Yield_Returns_False(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, g.AddNode(k))
	}

	count := 0
	for range g.Nodes() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func Test_OutEdges_And_InEdges_Yield_Every_Incident_Edge(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("alice", "carol", 1))

	outSeq, err := g.OutEdges("alice")
	require.NoError(t, err)
	var out []string
	for e := range outSeq {
		out = append(out, e.Target)
	}
	sort.Strings(out)
	assert.Equal(t, []string{"bob", "carol"}, out)

	inSeq, err := g.InEdges("bob")
	require.NoError(t, err)
	var in []string
	for e := range inSeq {
		in = append(in, e.Source)
	}
	assert.Equal(t, []string{"alice"}, in)
}

func Test_OutEdges_Snapshot_Matches_Expected_EdgeViews(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	require.NoError(t, g.AddEdge("alice", "bob", 0))
	require.NoError(t, g.AddEdge("alice", "carol", 1))

	outSeq, err := g.OutEdges("alice")
	require.NoError(t, err)
	var got []kinbaku.EdgeView
	for e := range outSeq {
		got = append(got, e)
	}

	want := []kinbaku.EdgeView{
		{Source: "alice", Target: "bob", Type: 0},
		{Source: "alice", Target: "carol", Type: 1},
	}

	diff := cmp.Diff(want, got,
		cmpopts.IgnoreFields(kinbaku.EdgeView{}, "Hash"),
		cmpopts.SortSlices(func(a, b kinbaku.EdgeView) bool { return a.Target < b.Target }),
	)
	assert.Empty(t, diff)
}

func Test_BatchNodes_Paginates_Through_The_Whole_Table(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})

	var want []string
	for i := 0; i < 25; i++ {
		key := string(rune('a' + i%26))
		if i >= 26 {
			key = key + key
		}
		want = append(want, key)
		require.NoError(t, g.AddNode(key))
	}

	var got []string
	cursor := uint64(0)
	for {
		batch, next, err := g.BatchNodes(4, cursor)
		require.NoError(t, err)
		for _, n := range batch {
			got = append(got, n.Key)
		}
		if next == ^uint64(0) {
			break
		}
		cursor = next
	}

	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
}

func Test_Open_Returns_ErrAlreadyOpen_When_Same_Path_Opened_Twice(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "graph.kb")

	g1, err := kinbaku.Open(path, kinbaku.Options{})
	require.NoError(t, err)
	defer g1.Close()

	_, err = kinbaku.Open(path, kinbaku.Options{})
	assert.ErrorIs(t, err, kinbaku.ErrAlreadyOpen)
}

func Test_Open_Reopens_An_Existing_File_With_Its_Graph_Intact(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "graph.kb")

	g1, err := kinbaku.Open(path, kinbaku.Options{})
	require.NoError(t, err)
	require.NoError(t, g1.AddEdge("alice", "bob", 0))
	require.NoError(t, g1.Close())

	g2, err := kinbaku.Open(path, kinbaku.Options{})
	require.NoError(t, err)
	defer g2.Close()

	assert.True(t, g2.HasNode("alice"))
	assert.True(t, g2.HasEdge("alice", "bob", 0))
}

func Test_ReadOnly_Graph_Rejects_Mutations(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "graph.kb")

	g1, err := kinbaku.Open(path, kinbaku.Options{})
	require.NoError(t, err)
	require.NoError(t, g1.AddNode("alice"))
	require.NoError(t, g1.Close())

	g2, err := kinbaku.Open(path, kinbaku.Options{ReadOnly: true})
	require.NoError(t, err)
	defer g2.Close()

	assert.True(t, g2.HasNode("alice"))
	assert.ErrorIs(t, g2.AddNode("bob"), kinbaku.ErrReadOnly)
}

func Test_Close_Then_Operation_Returns_ErrClosed(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "graph.kb")

	g, err := kinbaku.Open(path, kinbaku.Options{})
	require.NoError(t, err)
	require.NoError(t, g.Close())

	_, err = g.Node("alice")
	assert.ErrorIs(t, err, kinbaku.ErrClosed)
}

// refGraph is a trivial in-memory directed multigraph used as an oracle
// against which randomized Graph operations are checked for agreement.
type refGraph struct {
	nodes map[string]bool
	edges map[[2]string]map[uint32]bool
}

func newRefGraph() *refGraph {
	return &refGraph{nodes: map[string]bool{}, edges: map[[2]string]map[uint32]bool{}}
}

func (r *refGraph) addNode(k string) { r.nodes[k] = true }

func (r *refGraph) addEdge(s, t string, ty uint32) {
	r.addNode(s)
	r.addNode(t)
	key := [2]string{s, t}
	if r.edges[key] == nil {
		r.edges[key] = map[uint32]bool{}
	}
	r.edges[key][ty] = true
}

func (r *refGraph) removeEdge(s, t string, ty uint32) {
	key := [2]string{s, t}
	if r.edges[key] != nil {
		delete(r.edges[key], ty)
	}
}

func (r *refGraph) removeNode(k string) {
	delete(r.nodes, k)
	for key := range r.edges {
		if key[0] == k || key[1] == k {
			delete(r.edges, key)
		}
	}
}

func (r *refGraph) neighbors(u string) []string {
	var out []string
	for key, types := range r.edges {
		if key[0] == u && len(types) > 0 {
			out = append(out, key[1])
		}
	}
	sort.Strings(out)
	return out
}

func (r *refGraph) hasEdge(s, t string, ty uint32) bool {
	key := [2]string{s, t}
	return r.edges[key] != nil && r.edges[key][ty]
}

// Test_Randomized_Operations_Agree_With_A_Reference_Digraph runs a
// sequence of random AddNode/AddEdge/RemoveEdge/RemoveNode calls against
// both a Graph and a plain in-memory reference implementation. Each
// RemoveEdge/RemoveNode result is checked against the reference as it
// happens; node existence and neighbor sets are compared at the end.
func Test_Randomized_Operations_Agree_With_A_Reference_Digraph(t *testing.T) {
	t.Parallel()
	g := openTestGraph(t, kinbaku.Options{})
	ref := newRefGraph()

	rng := rand.New(rand.NewSource(42))
	keys := []string{"a", "b", "c", "d", "e", "f"}
	types := []uint32{0, 1, 2}

	randKey := func() string { return keys[rng.Intn(len(keys))] }
	randType := func() uint32 { return types[rng.Intn(len(types))] }

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			k := randKey()
			require.NoError(t, g.AddNode(k))
			ref.addNode(k)
		case 1:
			s, tt, ty := randKey(), randKey(), randType()
			require.NoError(t, g.AddEdge(s, tt, ty))
			ref.addEdge(s, tt, ty)
		case 2:
			s, tt, ty := randKey(), randKey(), randType()
			err := g.RemoveEdge(s, tt, ty)
			if ref.hasEdge(s, tt, ty) {
				require.NoError(t, err)
				ref.removeEdge(s, tt, ty)
			} else {
				assert.True(t, errors.Is(err, kinbaku.ErrEdgeNotFound) || errors.Is(err, kinbaku.ErrNodeNotFound))
			}
		case 3:
			k := randKey()
			err := g.RemoveNode(k)
			if ref.nodes[k] {
				require.NoError(t, err)
				ref.removeNode(k)
			} else {
				assert.ErrorIs(t, err, kinbaku.ErrNodeNotFound)
			}
		}
	}

	for _, k := range keys {
		assert.Equal(t, ref.nodes[k], g.HasNode(k), "node %q", k)
		if ref.nodes[k] {
			nb, err := g.Neighbors(k)
			require.NoError(t, err)
			sort.Strings(nb)
			assert.Equal(t, ref.neighbors(k), nb, "neighbors of %q", k)
		}
	}
}
