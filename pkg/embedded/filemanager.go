package embedded

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"hackohio/invoker/pkg/invoker"
)

// SourceFile is a compilation unit backed by a path on disk.
type SourceFile struct {
	path string
}

func (f SourceFile) Path() string { return f.path }

// FileManager hands out SourceFile units and holds compiler output in memory
// until Flush.
type FileManager struct {
	mu      sync.Mutex
	pending map[string][]byte
}

func NewFileManager() *FileManager {
	return &FileManager{pending: make(map[string][]byte)}
}

func (m *FileManager) Units(paths ...string) []invoker.Unit {
	out := make([]invoker.Unit, 0, len(paths))
	for _, p := range paths {
		out = append(out, SourceFile{path: p})
	}
	return out
}

// put buffers an output file, replacing any earlier content for path.
func (m *FileManager) put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[path] = data
}

// Pending lists buffered output paths in sorted order.
func (m *FileManager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pending))
	for p := range m.pending {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Flush writes all buffered output and empties the buffer. Every file is
// attempted; the returned error joins the individual failures.
func (m *FileManager) Flush() error {
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[string][]byte)
	m.mu.Unlock()

	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var errs []error
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", p, err))
			continue
		}
		if err := os.WriteFile(p, pending[p], 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
