package worker

import (
	"fmt"
	"time"

	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
)

// Config holds the worker's own knobs, as opposed to the collaborators
// (Client, Coordinator, buildsettings.Provider, index.Index) it is wired
// against. main.go builds one from config.Options/flags; tests mostly
// take the zero value.
type Config struct {
	// ExcludedSchemes lists URI schemes the worker never opens against the
	// compiler service, and never caches or publishes diagnostics for
	// (spec §3 data-model invariant). A nil slice (as opposed to an
	// explicit empty one) means "use the default".
	ExcludedSchemes []string

	// RequestTimeout bounds every individual compiler-service round trip.
	// Zero disables the bound, matching the teacher's own unbounded
	// synchronous calls.
	RequestTimeout time.Duration
}

// defaultExcludedSchemes mirrors sourcekit-lsp's own default: version
// control URIs a client sometimes hands back (e.g. from a diff view)
// never reach the daemon.
var defaultExcludedSchemes = []string{"git", "hg"}

func (c Config) excludedSchemes() []string {
	if c.ExcludedSchemes == nil {
		return defaultExcludedSchemes
	}
	return c.ExcludedSchemes
}

// excluded reports whether uri's scheme is configured out of compiler-
// service traffic entirely.
func (w *Worker) excluded(uri lsp.DocumentURI) bool {
	scheme := uri.URL().Scheme
	for _, s := range w.cfg.excludedSchemes() {
		if s == scheme {
			return true
		}
	}
	return false
}

// sendSync is every compiler-service round trip's single choke point: it
// applies Config.RequestTimeout uniformly rather than threading a context
// through sourcekitd.Client, whose SendSync the teacher's pack never
// models as context-aware (grounded on sourcekitd.Client itself, §4.4:
// a synchronous FFI call has no way to observe a context mid-flight, so
// the best this boundary can do is stop waiting and report a timeout,
// not actually cancel the in-flight call).
func (w *Worker) sendSync(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
	if w.cfg.RequestTimeout <= 0 {
		return w.client.SendSync(req)
	}

	type result struct {
		resp *sourcekitd.Dict
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := w.client.SendSync(req)
		done <- result{resp, err}
	}()
	select {
	case r := <-done:
		return r.resp, r.err
	case <-time.After(w.cfg.RequestTimeout):
		return nil, &sourcekitd.Error{Kind: sourcekitd.ErrorTimedOut, Msg: fmt.Sprintf("timed out after %s", w.cfg.RequestTimeout)}
	}
}
