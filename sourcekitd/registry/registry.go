// Package registry implements the process-wide, canonical-path-keyed
// sharing of compiler-service dylib handles described in spec §6: "first
// requester opens, last releaser closes." Concurrent Acquire calls for the
// same path must not race to open two dylibs; that coalescing is grounded
// on SeleniaProject-Orizon's internal/packagemanager/httpregistry.go, which
// uses golang.org/x/sync/singleflight to collapse concurrent cache-miss
// lookups onto a single in-flight call.
package registry

import (
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sourcekitd/langworker/sourcekitd"
)

// Opener constructs a sourcekitd.Client for a resolved dylib path. Production
// code passes a closure around pluginclient.Open; tests pass a func that returns a
// fakeclient.Client.
type Opener func(path string) (sourcekitd.Client, error)

type entry struct {
	client   sourcekitd.Client
	refCount int
}

// Registry shares one sourcekitd.Client per canonical dylib path across
// however many workers reference it.
type Registry struct {
	open Opener

	mu      sync.Mutex
	entries map[string]*entry
	sf      singleflight.Group
}

func New(open Opener) *Registry {
	return &Registry{open: open, entries: make(map[string]*entry)}
}

// canonicalize resolves path the way spec §6 requires for dedup: symlinks
// followed, so two paths reaching the same dylib through different
// symlinks collapse to one cache key. filepath.EvalSymlinks requires the
// path to exist; if it doesn't (or resolution otherwise fails), fall back
// to filepath.Abs so a not-yet-materialized path still gets a stable,
// absolute key rather than erroring out.
func canonicalize(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return filepath.Abs(resolved)
	}
	return filepath.Abs(path)
}

// Acquire returns the shared Client for the dylib at path, opening it if
// this is the first reference. Concurrent Acquire calls for the same path
// are coalesced via singleflight so the dylib is opened exactly once.
func (r *Registry) Acquire(path string) (sourcekitd.Client, error) {
	canonical, err := canonicalize(path)
	if err != nil {
		return nil, fmt.Errorf("registry: resolve %s: %w", path, err)
	}

	r.mu.Lock()
	if e, ok := r.entries[canonical]; ok {
		e.refCount++
		r.mu.Unlock()
		return e.client, nil
	}
	r.mu.Unlock()

	v, err, _ := r.sf.Do(canonical, func() (any, error) {
		r.mu.Lock()
		if e, ok := r.entries[canonical]; ok {
			r.mu.Unlock()
			return e.client, nil
		}
		r.mu.Unlock()

		client, err := r.open(canonical)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.entries[canonical] = &entry{client: client}
		r.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	// Every caller that shared the singleflight result holds its own
	// reference, so each one counts itself here rather than inside Do.
	r.mu.Lock()
	if e, ok := r.entries[canonical]; ok {
		e.refCount++
	}
	r.mu.Unlock()
	return v.(sourcekitd.Client), nil
}

// Release drops one reference to path's Client, closing it once the
// refcount reaches zero.
func (r *Registry) Release(path string) error {
	canonical, err := canonicalize(path)
	if err != nil {
		return fmt.Errorf("registry: resolve %s: %w", path, err)
	}

	r.mu.Lock()
	e, ok := r.entries[canonical]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("registry: %s is not acquired", canonical)
	}
	e.refCount--
	closeIt := e.refCount <= 0
	if closeIt {
		delete(r.entries, canonical)
	}
	r.mu.Unlock()

	if closeIt {
		return e.client.Close()
	}
	return nil
}

// RefCount reports the current reference count for path, or 0 if unacquired.
func (r *Registry) RefCount(path string) int {
	canonical, err := canonicalize(path)
	if err != nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[canonical]; ok {
		return e.refCount
	}
	return 0
}
