package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DebugStore keeps raw responses under one directory so failed runs can be
// inspected afterwards. Captures with the same name overwrite each other.
type DebugStore struct {
	mu  sync.Mutex
	dir string
}

func NewDebugStore(dir string) *DebugStore {
	return &DebugStore{dir: dir}
}

func (d *DebugStore) Capture(name string, content []byte) error {
	if name == "" || filepath.Base(name) != name {
		return fmt.Errorf("invalid capture name %q", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("could not create debug dir: %w", err)
	}

	return writeFileAtomic(filepath.Join(d.dir, name), content)
}
