package tinyvec

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// registry is the process-wide path -> Connection map. Connections are
// never implicitly evicted; DB.Close removes a path's entry explicitly.
// RefreshConnection reopens the vector file inside the registered
// Connection and leaves the entry itself unchanged.
type registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

var globalRegistry = &registry{conns: make(map[string]*Connection)}

// openConnection returns the existing Connection for path if one is
// registered (ignoring cfg.Dimensions in that case), or opens a new one
// and registers it.
func (r *registry) openConnection(ctx context.Context, path string, cfg Config) (*Connection, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}

	r.mu.RLock()
	if c, ok := r.conns[abs]; ok {
		r.mu.RUnlock()
		return c, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check: another caller may have opened it while we waited for
	// the write lock.
	if c, ok := r.conns[abs]; ok {
		return c, nil
	}

	c, err := newConnection(ctx, abs, cfg)
	if err != nil {
		return nil, err
	}
	r.conns[abs] = c
	return c, nil
}

func (r *registry) get(path string) (*Connection, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[abs]
	return c, ok
}

func (r *registry) remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, abs)
}
