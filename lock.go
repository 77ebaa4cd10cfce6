package kinbaku

import (
	"fmt"
	"path/filepath"
	"sync"
)

// processRegistry tracks which graph file paths are currently open in
// this process, so two Graph handles never mmap the same file
// concurrently and race each other's writes. Grounded on the teacher's
// pkg/slotcache/lock.go fileRegistry/getOrCreateRegistryEntry pattern,
// narrowed to in-process scope: spec.md's concurrency model is
// single-writer-per-process, not cross-process, so there is no flock
// here, only a guard against accidentally opening the same path twice
// from the same program.
var processRegistry = struct {
	mu    sync.Mutex
	paths map[string]bool
}{paths: make(map[string]bool)}

func acquireProcessLock(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("kinbaku: resolve path %s: %w", path, err)
	}

	processRegistry.mu.Lock()
	defer processRegistry.mu.Unlock()
	if processRegistry.paths[abs] {
		return fmt.Errorf("kinbaku: %s: %w", path, ErrAlreadyOpen)
	}
	processRegistry.paths[abs] = true
	return nil
}

func releaseProcessLock(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	processRegistry.mu.Lock()
	defer processRegistry.mu.Unlock()
	delete(processRegistry.paths, abs)
}
