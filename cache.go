package kinbaku

import lru "github.com/hashicorp/golang-lru/v2"

// caches bundles the four LRU caches that sit in front of the mapping,
// mirroring original_source/kinbaku/graph.py's Graph.__init__ (four
// cachetools.LRUCache instances: cache_key_to_pos, cache_pos_to_node,
// cache_id_to_key, cache_pos_to_node_tree). The teacher has no LRU
// library of its own (its caches are bespoke map-based structures); this
// is pulled in from the wider example pack, where
// github.com/hashicorp/golang-lru/v2 is a common dependency for exactly
// this kind of bounded hot-path cache.
type caches struct {
	keyToPos  *lru.Cache[string, uint64]
	posToNode *lru.Cache[uint64, nodeRecord]
	idToKey   *lru.Cache[uint64, string]
	posToTree *lru.Cache[uint64, nodeTreeInfo]
}

func newCaches(size int) *caches {
	keyToPos, _ := lru.New[string, uint64](size)
	posToNode, _ := lru.New[uint64, nodeRecord](size)
	idToKey, _ := lru.New[uint64, string](size)
	posToTree, _ := lru.New[uint64, nodeTreeInfo](size)
	return &caches{
		keyToPos:  keyToPos,
		posToNode: posToNode,
		idToKey:   idToKey,
		posToTree: posToTree,
	}
}

// put records a freshly read or written node across all four caches,
// matching graph.py's _cache_node.
func (c *caches) put(n nodeRecord) {
	c.keyToPos.Add(n.key, n.position)
	c.idToKey.Add(n.index, n.key)
	c.posToNode.Add(n.position, n)
	c.posToTree.Add(n.position, nodeTreeInfo{
		exists: n.exists,
		hash:   n.hash,
		left:   n.left,
		right:  n.right,
	})
}

// evict removes a node from all four caches, matching _uncache_node.
func (c *caches) evict(n nodeRecord) {
	c.keyToPos.Remove(n.key)
	c.idToKey.Remove(n.index)
	c.posToNode.Remove(n.position)
	c.posToTree.Remove(n.position)
}

// purge clears all four caches, matching empty_cache.
func (c *caches) purge() {
	c.keyToPos.Purge()
	c.idToKey.Purge()
	c.posToNode.Purge()
	c.posToTree.Purge()
}
