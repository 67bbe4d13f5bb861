package worker

import (
	"context"

	"github.com/sourcekitd/langworker/internal/lane"
	"github.com/sourcekitd/langworker/sourcekitd"
)

// State is the crash-recovery lifecycle variable of spec §3/§4.5. It is
// mutated only on the worker's lane.
type State int

const (
	Connected State = iota
	ConnectionInterrupted
	SemanticFunctionalityDisabled
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case ConnectionInterrupted:
		return "connection_interrupted"
	case SemanticFunctionalityDisabled:
		return "semantic_functionality_disabled"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked synchronously, on the lane, from the
// transition site whenever the worker's State changes (spec §4.5
// "Handlers are appended on the lane and invoked synchronously from the
// transition site").
type StateChangeHandler func(old, new State)

// State reports the worker's current lifecycle state. Scheduled on the
// lane like every other query, so it never races a concurrent transition.
func (w *Worker) State() State {
	v, _ := lane.CallValue(w.lane, func() (State, error) {
		return w.state, nil
	})
	return v
}

// AddStateChangeHandler registers h to be called with (old, new) on every
// future state transition (spec §6 "addStateChangeHandler").
func (w *Worker) AddStateChangeHandler(h StateChangeHandler) {
	w.lane.Call(func() error {
		w.stateHandlers = append(w.stateHandlers, h)
		return nil
	})
}

// transitionLocked must only be called from the lane. It is a no-op if
// new equals the current state.
func (w *Worker) transitionLocked(new State) {
	old := w.state
	if old == new {
		return
	}
	w.state = new
	for _, h := range w.stateHandlers {
		h(old, new)
	}
}

// enterConnectionInterrupted implements the Connected -> ConnectionInterrupted
// row of the §4.5 table: replace the document manager with an empty one,
// then transition. Idempotent: a second crash signal while already
// recovering does nothing here (the "any notification while
// ConnectionInterrupted" row handles forward progress instead).
func (w *Worker) enterConnectionInterrupted() {
	if w.state != Connected {
		return
	}
	w.docs.Reset()
	w.transitionLocked(ConnectionInterrupted)
}

// handleNotification is registered with the compiler-service client at
// construction time. It may be called from any goroutine (the client
// implementation's own dispatch), so it re-posts onto the lane before
// touching any worker state (spec §5 "Callbacks from async
// compiler-service requests are routed back to the same lane").
func (w *Worker) handleNotification(note *sourcekitd.Dict) {
	w.lane.Post(func() {
		w.handleNotificationLocked(note)
	})
}

func (w *Worker) handleNotificationLocked(note *sourcekitd.Dict) {
	kind, ok := note.GetUID(w.keys.keyNotification)
	if !ok {
		return
	}

	if w.state == ConnectionInterrupted {
		// spec §4.5: "ConnectionInterrupted | any notification |
		// SemanticFunctionalityDisabled | Invoke reopen_documents".
		w.transitionLocked(SemanticFunctionalityDisabled)
		w.coordinator.ReopenDocuments(context.Background())
		return
	}

	switch kind {
	case w.keys.valNotifyConnectionInterrupted:
		w.enterConnectionInterrupted()
	case w.keys.valNotifySemaEnabled:
		if w.state == SemanticFunctionalityDisabled {
			w.transitionLocked(Connected)
		}
	case w.keys.valNotifyDocumentUpdate:
		name, _ := note.GetString(w.keys.keyName)
		if uri, ok := resolveURIFromName(name); ok {
			if err := w.syntheticRefresh(uri); err != nil {
				w.log.Warning("documentupdate refresh failed for {URI}: {Error}", uri, err)
			}
		}
	}
}

// TestCrash is a test-only hook mirroring the upstream contract's
// `_crash` entry point (spec §6): it simulates the daemon delivering a
// connection_interrupted notification, without needing a fake client to
// synthesize one.
func (w *Worker) TestCrash() {
	w.lane.Call(func() error {
		w.enterConnectionInterrupted()
		return nil
	})
}
