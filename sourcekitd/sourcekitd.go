// Package sourcekitd models the wire contract of the external compiler
// service daemon the worker drives (spec §4.4, §6). The daemon itself is
// an out-of-process dylib reached through the C client library; this
// package defines the request/response dictionary shapes, the opaque UID
// namespaces, and the Client interface two concrete implementations
// satisfy: sourcekitd/pluginclient (the real dylib, loaded through stdlib
// plugin.Open) and sourcekitd/fakeclient (an in-memory stand-in for
// tests).
//
// Nothing here is grounded directly in ConradIrwin/conl-lsp, which has no
// FFI boundary at all (its "compiler" is an in-process conl-go parser
// call). The dictionary/UID shape follows spec §3's data model and §9's
// "sum types everywhere, opaque UID namespaces" design notes.
package sourcekitd

import "fmt"

// UID is an opaque integer handle into one of the daemon's interned string
// namespaces (keys, request kinds, or response/enum values). UIDs are
// resolved once, by name, when a Client is constructed; callers never
// hard-code the underlying integer.
type UID struct {
	ns   string
	name string
	v    uint64
}

func (u UID) String() string { return u.name }

// IsZero reports whether u is the zero value, i.e. was never resolved.
func (u UID) IsZero() bool { return u.name == "" }

// Dict is a compiler-service request or response: an ordered set of
// UID-keyed fields. Requests are built with NewRequest and populated with
// Set*; responses are read back with the Get* accessors. Using a single
// type for both mirrors the daemon's own representation, where a request
// dictionary and a response dictionary share one wire format.
type Dict struct {
	fields map[UID]any
	order  []UID
}

// NewRequest starts an empty request dictionary keyed by uid "key.request".
func NewRequest(kind UID) *Dict {
	d := &Dict{fields: make(map[UID]any)}
	d.Set(KeyRequest, kind)
	return d
}

// NewResponse wraps a pre-populated map as a read-only response, as
// returned by a Client implementation.
func NewResponse(fields map[UID]any) *Dict {
	return &Dict{fields: fields}
}

func (d *Dict) Set(key UID, value any) *Dict {
	if _, exists := d.fields[key]; !exists {
		d.order = append(d.order, key)
	}
	d.fields[key] = value
	return d
}

func (d *Dict) GetString(key UID) (string, bool) {
	v, ok := d.fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (d *Dict) GetInt64(key UID) (int64, bool) {
	v, ok := d.fields[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func (d *Dict) GetBool(key UID) (bool, bool) {
	v, ok := d.fields[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (d *Dict) GetUID(key UID) (UID, bool) {
	v, ok := d.fields[key]
	if !ok {
		return UID{}, false
	}
	u, ok := v.(UID)
	return u, ok
}

func (d *Dict) GetDict(key UID) (*Dict, bool) {
	v, ok := d.fields[key]
	if !ok {
		return nil, false
	}
	inner, ok := v.(*Dict)
	return inner, ok
}

// Order returns the dictionary's keys in insertion order, for callers that
// need to walk every field (e.g. pluginclient's wire adapter). A Dict built
// with NewResponse records no insertion order, so Order returns nil for it.
func (d *Dict) Order() []UID {
	return d.order
}

// Raw returns the unconverted value stored under key, or nil if absent.
func (d *Dict) Raw(key UID) any {
	return d.fields[key]
}

func (d *Dict) GetArray(key UID) ([]*Dict, bool) {
	v, ok := d.fields[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.([]*Dict)
	return arr, ok
}

// KeyRequest is built directly, with no resolved handle, rather than
// through a Namespace, because NewRequest needs it before any Namespace
// exists; it is the same value for pluginclient and fakeclient. It is
// exported so a Client
// implementation (fakeclient in particular) can read back a request's kind
// without going through its own Keys() namespace, which would mint a
// different UID for the same name.
var KeyRequest = UID{ns: "key", name: "key.request"}

// CompileCommand is the compiler invocation the worker attaches to an
// editor_open/editor_replacetext request (spec §3). IsFallback marks argv
// as inferred without consulting the real build system; semantic
// diagnostics produced under a fallback command are withheld from
// publication (diagnostics.Cache.Merge).
type CompileCommand struct {
	Argv       []string
	IsFallback bool
}

// Equal reports whether c and other represent the same compile command,
// including the fallback flag (spec §3 "Compile command is replaced only
// when it differs").
func (c CompileCommand) Equal(other CompileCommand) bool {
	if c.IsFallback != other.IsFallback || len(c.Argv) != len(other.Argv) {
		return false
	}
	for i := range c.Argv {
		if c.Argv[i] != other.Argv[i] {
			return false
		}
	}
	return true
}

// WithWorkingDirectory appends -working-directory dir to argv if argv does
// not already contain that flag (spec §3 "Constructed from a
// build-settings change by appending -working-directory <dir> if absent").
func (c CompileCommand) WithWorkingDirectory(dir string) CompileCommand {
	for _, a := range c.Argv {
		if a == "-working-directory" {
			return c
		}
	}
	argv := append(append([]string(nil), c.Argv...), "-working-directory", dir)
	return CompileCommand{Argv: argv, IsFallback: c.IsFallback}
}

// ErrorKind classifies a Client error, per spec §4.4's "crash detection"
// and §7's worker error contract.
type ErrorKind int

const (
	ErrorCancelled ErrorKind = iota
	ErrorConnectionInterrupted
	ErrorFailed
	ErrorTimedOut
	ErrorMissingRequiredSymbol
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorCancelled:
		return "cancelled"
	case ErrorConnectionInterrupted:
		return "connection_interrupted"
	case ErrorFailed:
		return "failed"
	case ErrorTimedOut:
		return "timed_out"
	case ErrorMissingRequiredSymbol:
		return "missing_required_symbol"
	default:
		return "unknown"
	}
}

// Error is what a Client returns when a request does not succeed. A
// ConnectionInterrupted error is the trigger for the worker's crash
// recovery state machine (spec §4.4, §5).
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sourcekitd: %s: %s", e.Kind, e.Msg)
}

// NotificationHandler is called for every out-of-band notification the
// daemon sends (e.g. a kind=documentupdate push). Handlers are invoked in
// registration order; the worker relies on this to run its own state
// transition before interpreting the payload (spec §9 "Notification
// handler list").
type NotificationHandler func(note *Dict)

// Client is the contract the worker depends on; it is satisfied by
// pluginclient.Client (the real dylib) and fakeclient.Client (tests).
type Client interface {
	// SendSync issues req and blocks for the response.
	SendSync(req *Dict) (*Dict, error)
	// SendAsync issues req and calls done from some other goroutine once
	// the daemon replies; callers must route done's invocation back onto
	// their own serialization point (the worker's lane).
	SendAsync(req *Dict, done func(*Dict, error))
	// AddNotificationHandler registers h for all future notifications and
	// returns a token that can be passed to RemoveNotificationHandler.
	AddNotificationHandler(h NotificationHandler) int
	RemoveNotificationHandler(token int)
	// Keys, Requests, and Values expose the three opaque UID namespaces;
	// each resolves a name on first use and caches it (spec §9).
	Keys() *Namespace
	Requests() *Namespace
	Values() *Namespace
	Close() error
}

// Namespace resolves UID names to stable handles once, on first use, and
// caches them for the Client's lifetime.
type Namespace struct {
	ns      string
	resolve func(name string) uint64
	cache   map[string]UID
}

func NewNamespace(ns string, resolve func(name string) uint64) *Namespace {
	return &Namespace{ns: ns, resolve: resolve, cache: make(map[string]UID)}
}

func (n *Namespace) UID(name string) UID {
	if u, ok := n.cache[name]; ok {
		return u
	}
	u := UID{ns: n.ns, name: name, v: n.resolve(name)}
	n.cache[name] = u
	return u
}
