package kinbaku

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// substrate owns the backing file descriptor and its current memory
// mapping. Grounded on the teacher's pkg/slotcache/open.go
// (createNewCache/mmapAndCreateCache) for the create-then-mmap pipeline
// shape, and on original_source/kinbaku/graph.py's _load_file/
// _map_to_memory/_expand for the grow-in-place/remap protocol.
type substrate struct {
	file *os.File
	data []byte // the whole file, header included
}

func createFile(path string, h fileHeader, l layout) error {
	header := encodeHeader(&h)

	root := nodeRecord{exists: true, hash: rootHash}
	nodePlaceholder := l.encodeNode(&root)

	edgeZero := encodeEdge(&edgeRecord{})

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(nodePlaceholder)
	for i := uint64(0); i < h.tableIncrement; i++ {
		buf.Write(edgeZero)
	}

	// Atomic create-or-replace, mirroring pkg/fs/atomic_write.go and the
	// teacher's createNewCache: write to a temp file in the same
	// directory, then rename over the destination.
	if err := atomic.WriteFile(path, bytes.NewReader(buf.Bytes())); err != nil {
		return fmt.Errorf("kinbaku: create %s: %w", path, err)
	}
	return nil
}

func openSubstrate(path string, readOnly bool) (*substrate, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("kinbaku: open %s: %w", path, err)
	}
	s := &substrate{file: f}
	if err := s.mmap(readOnly); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *substrate) mmap(readOnly bool) error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("kinbaku: stat: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return fmt.Errorf("kinbaku: empty file: %w", ErrCorrupt)
	}

	prot := unix.PROT_READ
	if !readOnly {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(s.file.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("kinbaku: mmap: %w", err)
	}
	s.data = data
	return nil
}

func (s *substrate) munmap() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	return err
}

// grow appends `by` edge-slots to the file and remaps it, following
// graph.py's _expand: the whole region is unmapped, the file is extended
// with an os-level append, then it is mapped again at the new size.
func (s *substrate) grow(by uint64, edgeSize uint32) error {
	if err := s.munmap(); err != nil {
		return fmt.Errorf("kinbaku: munmap before grow: %w", err)
	}

	zero := make([]byte, edgeSize)
	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("kinbaku: seek: %w", err)
	}
	for i := uint64(0); i < by; i++ {
		if _, err := s.file.Write(zero); err != nil {
			return fmt.Errorf("kinbaku: grow write: %w", err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("kinbaku: grow fsync: %w", err)
	}
	return s.mmap(false)
}

func (s *substrate) close() error {
	munmapErr := s.munmap()
	closeErr := s.file.Close()
	if munmapErr != nil {
		return munmapErr
	}
	return closeErr
}
