package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/sourcekitd/fakeclient"
)

func TestAcquireSharesOneClientPerPath(t *testing.T) {
	var opens int
	var mu sync.Mutex
	r := New(func(path string) (sourcekitd.Client, error) {
		mu.Lock()
		opens++
		mu.Unlock()
		return fakeclient.New(), nil
	})

	c1, err := r.Acquire("a.dylib")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c2, err := r.Acquire("a.dylib")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected the same Client for repeated Acquire of the same path")
	}
	if opens != 1 {
		t.Fatalf("expected exactly one open, got %d", opens)
	}
	if got := r.RefCount("a.dylib"); got != 2 {
		t.Fatalf("expected refcount 2, got %d", got)
	}
}

func TestReleaseClosesOnLastReference(t *testing.T) {
	var closed int
	r := New(func(path string) (sourcekitd.Client, error) {
		return &closeTrackingClient{Client: fakeclient.New(), onClose: func() { closed++ }}, nil
	})

	if _, err := r.Acquire("b.dylib"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.Acquire("b.dylib"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Release("b.dylib"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 0 {
		t.Fatalf("expected no close yet, one reference remains")
	}

	if err := r.Release("b.dylib"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected close on last release, got %d closes", closed)
	}
}

// TestAcquireDedupesThroughSymlink checks spec §6's canonicalization
// requirement: two distinct paths that reach the same dylib through a
// symlink must share one Client and one open, not open it twice.
func TestAcquireDedupesThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.dylib")
	if err := os.WriteFile(real, []byte("dylib"), 0o644); err != nil {
		t.Fatalf("write real dylib: %v", err)
	}
	link := filepath.Join(dir, "link.dylib")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable in this environment: %v", err)
	}

	var opens int
	var mu sync.Mutex
	r := New(func(path string) (sourcekitd.Client, error) {
		mu.Lock()
		opens++
		mu.Unlock()
		return fakeclient.New(), nil
	})

	c1, err := r.Acquire(real)
	if err != nil {
		t.Fatalf("Acquire(real): %v", err)
	}
	c2, err := r.Acquire(link)
	if err != nil {
		t.Fatalf("Acquire(link): %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected the same Client through the symlinked path")
	}
	if opens != 1 {
		t.Fatalf("expected exactly one open across real path and symlink, got %d", opens)
	}
	if got := r.RefCount(link); got != 2 {
		t.Fatalf("expected refcount 2 via the symlinked path, got %d", got)
	}
}

func TestReleaseWithoutAcquireErrors(t *testing.T) {
	r := New(func(path string) (sourcekitd.Client, error) { return fakeclient.New(), nil })
	if err := r.Release("never-acquired.dylib"); err == nil {
		t.Fatalf("expected an error releasing a path that was never acquired")
	}
}

type closeTrackingClient struct {
	*fakeclient.Client
	onClose func()
}

func (c *closeTrackingClient) Close() error {
	c.onClose()
	return nil
}
