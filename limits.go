package kinbaku

// Hard limits, mirroring the teacher's pkg/slotcache/limits.go style of
// collecting bounds in one place rather than scattering magic numbers.
const (
	maxKeyLenLimit       = 4096
	maxTableIncrement    = 1 << 32
	minTableIncrement    = 8
	defaultMaxKeyLen     = 15
	defaultTableIncr     = 1024
	defaultCacheSize     = 8192
	maxBatchSize         = 1 << 20
	headerSize           = 128
	formatVersion uint32 = 1
)

var magicBytes = [4]byte{'K', 'N', 'B', 'K'}
