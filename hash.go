package kinbaku

import (
	"hash/fnv"
	"strconv"
)

// rootHash is the fixed hash of the immovable sentinel root node at slot
// 0, matching original_source/kinbaku/graph.py's `Node(hash=2147483648)`.
const rootHash uint32 = 1 << 31

// defaultHashFunc hashes a node key to its 32-bit bucket hash using
// FNV-1a, the same algorithm the teacher's pkg/slotcache/format.go
// declares as its hash identifier (slc1HashAlgFNV1a64), narrowed to 32
// bits for the node hash field's width.
func defaultHashFunc(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}

// edgeHash derives an edge's 32-bit hash from its endpoints' node hashes
// and its type, matching graph.py's _get_edge_hash.
func edgeHash(hf func(string) uint32, sourceHash, targetHash uint32, edgeType uint32) uint32 {
	s := strconv.FormatUint(uint64(sourceHash), 10) + "_" +
		strconv.FormatUint(uint64(edgeType), 10) + "_" +
		strconv.FormatUint(uint64(targetHash), 10)
	return hf(s)
}
