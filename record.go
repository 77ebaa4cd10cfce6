package kinbaku

import (
	"encoding/binary"
	"hash/crc32"
)

// layout holds the sizes derived from a graph's configuration, computed
// once at Open and then treated as immutable for the lifetime of the
// handle. This replaces the reflection-driven field walk that the
// original Python implementation performs on every record
// (_parse_fields/_parse_values over dataclass fields) with an explicit,
// typed schema — the Go port has no runtime reflection in the hot path.
type layout struct {
	maxKeyLen uint32
	edgeSize  uint32 // E: bytes per slot
	nodeSize  uint32 // bytes of a node record before R*E padding
	ratio     uint32 // R = ceil(nodeSize / edgeSize), slots per node
}

// Edge record byte offsets. Fixed width, independent of maxKeyLen.
const (
	edgeOffIsNode      = 0
	edgeOffExists      = 1
	edgeOffIsEdgeStart = 2
	edgeOffType        = 3
	edgeOffHash        = 7
	edgeOffPosition    = 11
	edgeOffSource      = 19
	edgeOffTarget      = 27
	edgeOffOutLeft     = 35
	edgeOffOutRight    = 43
	edgeOffOutParent   = 51
	edgeOffInLeft      = 59
	edgeOffInRight     = 67
	edgeOffInParent    = 75
	edgeRecordSize     = 83
)

// Node record byte offsets. nodeOffKey..+maxKeyLen varies with layout.
const (
	nodeOffIsNode    = 0
	nodeOffExists    = 1
	nodeOffHash      = 2
	nodeOffLeft      = 6
	nodeOffRight     = 14
	nodeOffIndex     = 22
	nodeOffPosition  = 30
	nodeOffParent    = 38
	nodeOffEdgeStart = 46
	nodeOffKey       = 54
	nodeFixedSize    = 54 // bytes before the key field
	// nodeTreeInfoSize covers IsNode, Exists, Hash, Left, Right — the
	// fast path used by the node-BST descent (_get_node_tree_info_at).
	nodeTreeInfoSize = 22
)

func newLayout(maxKeyLen uint32) layout {
	nodeSize := nodeFixedSize + maxKeyLen
	ratio := (nodeSize + edgeRecordSize - 1) / edgeRecordSize
	return layout{
		maxKeyLen: maxKeyLen,
		edgeSize:  edgeRecordSize,
		nodeSize:  nodeSize,
		ratio:     ratio,
	}
}

// slotOffset returns the byte offset of slot position within the data
// region (i.e. after the header).
func (l layout) slotOffset(position uint64) int64 {
	return int64(position) * int64(l.edgeSize)
}

func (l layout) nodeSpan() uint32 { return l.ratio * l.edgeSize }

// --- header ---------------------------------------------------------------

type fileHeader struct {
	nNodes            uint64
	nEdges            uint64
	nodeID            uint64
	nextTablePosition uint64
	tableSize         uint64
	classLength       uint64
	tableIncrement    uint64
	maxKeyLen         uint32
}

func encodeHeader(h *fileHeader) []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magicBytes[:])
	binary.LittleEndian.PutUint32(buf[4:8], formatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], edgeRecordSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.maxKeyLen)
	binary.LittleEndian.PutUint64(buf[16:24], h.tableIncrement)
	binary.LittleEndian.PutUint64(buf[24:32], h.nNodes)
	binary.LittleEndian.PutUint64(buf[32:40], h.nEdges)
	binary.LittleEndian.PutUint64(buf[40:48], h.nodeID)
	binary.LittleEndian.PutUint64(buf[48:56], h.nextTablePosition)
	binary.LittleEndian.PutUint64(buf[56:64], h.tableSize)
	binary.LittleEndian.PutUint64(buf[64:72], h.classLength)

	crc := headerCRC(buf)
	binary.LittleEndian.PutUint32(buf[72:76], crc)
	return buf
}

func decodeHeader(buf []byte) (fileHeader, error) {
	if len(buf) < headerSize {
		return fileHeader{}, ErrCorrupt
	}
	if [4]byte(buf[0:4]) != magicBytes {
		return fileHeader{}, ErrIncompatible
	}
	if binary.LittleEndian.Uint32(buf[4:8]) != formatVersion {
		return fileHeader{}, ErrIncompatible
	}
	if binary.LittleEndian.Uint32(buf[8:12]) != edgeRecordSize {
		return fileHeader{}, ErrIncompatible
	}
	storedCRC := binary.LittleEndian.Uint32(buf[72:76])
	if headerCRC(buf) != storedCRC {
		return fileHeader{}, ErrCorrupt
	}

	var h fileHeader
	h.maxKeyLen = binary.LittleEndian.Uint32(buf[12:16])
	h.tableIncrement = binary.LittleEndian.Uint64(buf[16:24])
	h.nNodes = binary.LittleEndian.Uint64(buf[24:32])
	h.nEdges = binary.LittleEndian.Uint64(buf[32:40])
	h.nodeID = binary.LittleEndian.Uint64(buf[40:48])
	h.nextTablePosition = binary.LittleEndian.Uint64(buf[48:56])
	h.tableSize = binary.LittleEndian.Uint64(buf[56:64])
	h.classLength = binary.LittleEndian.Uint64(buf[64:72])
	return h, nil
}

// headerCRC computes the CRC32-Castagnoli checksum of the header buffer
// with the checksum field itself zeroed, matching the teacher's
// pkg/slotcache/format.go computeHeaderCRC convention.
func headerCRC(buf []byte) uint32 {
	tmp := make([]byte, headerSize)
	copy(tmp, buf)
	for i := 72; i < 76; i++ {
		tmp[i] = 0
	}
	return crc32.Checksum(tmp, crc32.MakeTable(crc32.Castagnoli))
}

// --- node record ------------------------------------------------------------

type nodeRecord struct {
	exists    bool
	hash      uint32
	left      uint64
	right     uint64
	index     uint64
	position  uint64
	parent    uint64
	edgeStart uint64
	key       string
}

func (l layout) encodeNode(n *nodeRecord) []byte {
	buf := make([]byte, l.nodeSpan())
	buf[nodeOffIsNode] = 1
	if n.exists {
		buf[nodeOffExists] = 1
	}
	binary.LittleEndian.PutUint32(buf[nodeOffHash:], n.hash)
	binary.LittleEndian.PutUint64(buf[nodeOffLeft:], n.left)
	binary.LittleEndian.PutUint64(buf[nodeOffRight:], n.right)
	binary.LittleEndian.PutUint64(buf[nodeOffIndex:], n.index)
	binary.LittleEndian.PutUint64(buf[nodeOffPosition:], n.position)
	binary.LittleEndian.PutUint64(buf[nodeOffParent:], n.parent)
	binary.LittleEndian.PutUint64(buf[nodeOffEdgeStart:], n.edgeStart)
	copy(buf[nodeOffKey:int(nodeOffKey)+int(l.maxKeyLen)], n.key)
	return buf
}

func (l layout) decodeNode(buf []byte) nodeRecord {
	var n nodeRecord
	n.exists = buf[nodeOffExists] != 0
	n.hash = binary.LittleEndian.Uint32(buf[nodeOffHash:])
	n.left = binary.LittleEndian.Uint64(buf[nodeOffLeft:])
	n.right = binary.LittleEndian.Uint64(buf[nodeOffRight:])
	n.index = binary.LittleEndian.Uint64(buf[nodeOffIndex:])
	n.position = binary.LittleEndian.Uint64(buf[nodeOffPosition:])
	n.parent = binary.LittleEndian.Uint64(buf[nodeOffParent:])
	n.edgeStart = binary.LittleEndian.Uint64(buf[nodeOffEdgeStart:])
	keyBytes := buf[nodeOffKey : int(nodeOffKey)+int(l.maxKeyLen)]
	end := 0
	for end < len(keyBytes) && keyBytes[end] != 0 {
		end++
	}
	n.key = string(keyBytes[:end])
	return n
}

// nodeTreeInfo is the fast-path (hash, left, right) prefix used while
// descending the node-BST, avoiding a full record decode per hop.
type nodeTreeInfo struct {
	exists bool
	hash   uint32
	left   uint64
	right  uint64
}

func decodeNodeTreeInfo(buf []byte) nodeTreeInfo {
	return nodeTreeInfo{
		exists: buf[nodeOffExists] != 0,
		hash:   binary.LittleEndian.Uint32(buf[nodeOffHash:]),
		left:   binary.LittleEndian.Uint64(buf[nodeOffLeft:]),
		right:  binary.LittleEndian.Uint64(buf[nodeOffRight:]),
	}
}

// --- edge record ------------------------------------------------------------

type edgeRecord struct {
	exists       bool
	isEdgeStart  bool
	position     uint64
	source       uint64
	target       uint64
	hash         uint32
	outLeft      uint64
	outRight     uint64
	outParent    uint64
	inLeft       uint64
	inRight      uint64
	inParent     uint64
	typ          uint32
}

func encodeEdge(e *edgeRecord) []byte {
	buf := make([]byte, edgeRecordSize)
	// buf[edgeOffIsNode] stays 0 (edges are never nodes).
	if e.exists {
		buf[edgeOffExists] = 1
	}
	if e.isEdgeStart {
		buf[edgeOffIsEdgeStart] = 1
	}
	binary.LittleEndian.PutUint32(buf[edgeOffType:], e.typ)
	binary.LittleEndian.PutUint32(buf[edgeOffHash:], e.hash)
	binary.LittleEndian.PutUint64(buf[edgeOffPosition:], e.position)
	binary.LittleEndian.PutUint64(buf[edgeOffSource:], e.source)
	binary.LittleEndian.PutUint64(buf[edgeOffTarget:], e.target)
	binary.LittleEndian.PutUint64(buf[edgeOffOutLeft:], e.outLeft)
	binary.LittleEndian.PutUint64(buf[edgeOffOutRight:], e.outRight)
	binary.LittleEndian.PutUint64(buf[edgeOffOutParent:], e.outParent)
	binary.LittleEndian.PutUint64(buf[edgeOffInLeft:], e.inLeft)
	binary.LittleEndian.PutUint64(buf[edgeOffInRight:], e.inRight)
	binary.LittleEndian.PutUint64(buf[edgeOffInParent:], e.inParent)
	return buf
}

func decodeEdge(buf []byte) edgeRecord {
	var e edgeRecord
	e.exists = buf[edgeOffExists] != 0
	e.isEdgeStart = buf[edgeOffIsEdgeStart] != 0
	e.typ = binary.LittleEndian.Uint32(buf[edgeOffType:])
	e.hash = binary.LittleEndian.Uint32(buf[edgeOffHash:])
	e.position = binary.LittleEndian.Uint64(buf[edgeOffPosition:])
	e.source = binary.LittleEndian.Uint64(buf[edgeOffSource:])
	e.target = binary.LittleEndian.Uint64(buf[edgeOffTarget:])
	e.outLeft = binary.LittleEndian.Uint64(buf[edgeOffOutLeft:])
	e.outRight = binary.LittleEndian.Uint64(buf[edgeOffOutRight:])
	e.outParent = binary.LittleEndian.Uint64(buf[edgeOffOutParent:])
	e.inLeft = binary.LittleEndian.Uint64(buf[edgeOffInLeft:])
	e.inRight = binary.LittleEndian.Uint64(buf[edgeOffInRight:])
	e.inParent = binary.LittleEndian.Uint64(buf[edgeOffInParent:])
	return e
}

// isNodeSlot reports whether the slot at buf[0] (a single edge-sized
// slot's worth of bytes) is tagged as the first slot of a node record.
func isNodeSlot(buf []byte) bool {
	return buf[edgeOffIsNode] != 0
}
