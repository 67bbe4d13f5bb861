// Package pluginclient loads the compiler-service daemon's client library
// as a Go plugin and adapts its exported symbols to the sourcekitd.Client
// interface.
//
// The real C client library is reached through dlopen and a hand-written
// FFI shim in the original implementation; nothing in the example pack
// performs dlopen/cgo-style dynamic loading (grep across _examples turns
// up no cgo, no purego, no syscall.NewLazyDLL), so this package uses the
// standard library's own dynamic-library mechanism, package plugin, as the
// closest available analogue — see DESIGN.md for the standard-library
// justification.
package pluginclient

import (
	"fmt"
	"plugin"
	"sort"
	"sync"

	"github.com/sourcekitd/langworker/sourcekitd"
)

// exportedAPI is the shape the dylib's Go plugin is expected to export.
// Plugins built against this package's ABI expose a single exported
// variable, API, implementing this interface.
type exportedAPI interface {
	ResolveUID(namespace, name string) uint64
	SendSync(req map[string]any) (map[string]any, error)
	SendAsync(req map[string]any, done func(map[string]any, error))
	Subscribe(handler func(map[string]any))
	Close() error
}

// Client adapts a loaded plugin's exported API to sourcekitd.Client.
type Client struct {
	path string
	api  exportedAPI

	mu       sync.Mutex
	handlers map[int]sourcekitd.NotificationHandler
	nextTok  int

	keys     *sourcekitd.Namespace
	requests *sourcekitd.Namespace
	values   *sourcekitd.Namespace
}

// Open loads the dylib at path and resolves its UID namespaces. Per spec
// §6 the dylib is shared process-wide via a canonical-path registry; Open
// itself performs no caching, that's sourcekitd/registry's job.
func Open(path string) (*Client, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pluginclient: open %s: %w", path, err)
	}
	sym, err := p.Lookup("API")
	if err != nil {
		return nil, fmt.Errorf("pluginclient: %s does not export API: %w", path, err)
	}
	api, ok := sym.(exportedAPI)
	if !ok {
		return nil, fmt.Errorf("pluginclient: %s's API symbol has the wrong shape", path)
	}

	c := &Client{path: path, api: api, handlers: make(map[int]sourcekitd.NotificationHandler)}
	c.keys = sourcekitd.NewNamespace("key", func(name string) uint64 { return api.ResolveUID("key", name) })
	c.requests = sourcekitd.NewNamespace("request", func(name string) uint64 { return api.ResolveUID("request", name) })
	c.values = sourcekitd.NewNamespace("value", func(name string) uint64 { return api.ResolveUID("value", name) })
	api.Subscribe(c.dispatch)
	return c, nil
}

func (c *Client) dispatch(note map[string]any) {
	c.mu.Lock()
	tokens := make([]int, 0, len(c.handlers))
	for tok := range c.handlers {
		tokens = append(tokens, tok)
	}
	sort.Ints(tokens)
	handlers := make([]sourcekitd.NotificationHandler, 0, len(tokens))
	for _, tok := range tokens {
		handlers = append(handlers, c.handlers[tok])
	}
	c.mu.Unlock()

	d := sourcekitd.NewResponse(c.dictToFields(note))
	for _, h := range handlers {
		h(d)
	}
}

func (c *Client) SendSync(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
	resp, err := c.api.SendSync(dictToWire(req))
	if err != nil {
		return nil, translateError(err)
	}
	return sourcekitd.NewResponse(c.dictToFields(resp)), nil
}

func (c *Client) SendAsync(req *sourcekitd.Dict, done func(*sourcekitd.Dict, error)) {
	c.api.SendAsync(dictToWire(req), func(resp map[string]any, err error) {
		if err != nil {
			done(nil, translateError(err))
			return
		}
		done(sourcekitd.NewResponse(c.dictToFields(resp)), nil)
	})
}

func (c *Client) AddNotificationHandler(h sourcekitd.NotificationHandler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextTok++
	tok := c.nextTok
	c.handlers[tok] = h
	return tok
}

func (c *Client) RemoveNotificationHandler(token int) {
	c.mu.Lock()
	delete(c.handlers, token)
	c.mu.Unlock()
}

func (c *Client) Keys() *sourcekitd.Namespace     { return c.keys }
func (c *Client) Requests() *sourcekitd.Namespace { return c.requests }
func (c *Client) Values() *sourcekitd.Namespace    { return c.values }

func (c *Client) Close() error {
	return c.api.Close()
}

// dictToWire and dictToFields are the boundary between this package's
// untyped map-of-any wire shape (what a plugin's exported functions can
// portably accept/return across the plugin ABI) and sourcekitd.Dict.
func dictToWire(d *sourcekitd.Dict) map[string]any {
	out := make(map[string]any)
	if d == nil {
		return out
	}
	for _, k := range d.Order() {
		out[k.String()] = d.Raw(k)
	}
	return out
}

// dictToFields resolves every key in m through the Client's "key"
// namespace and recursively rewraps nested maps/slices as *sourcekitd.Dict
// and []*sourcekitd.Dict, so GetDict/GetArray work the same way regardless
// of whether a response came from fakeclient (built with real UIDs
// already) or across the plugin boundary (built from bare strings).
func (c *Client) dictToFields(m map[string]any) map[sourcekitd.UID]any {
	out := make(map[sourcekitd.UID]any, len(m))
	for k, v := range m {
		out[c.keys.UID(k)] = c.rewrapValue(v)
	}
	return out
}

func (c *Client) rewrapValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return sourcekitd.NewResponse(c.dictToFields(val))
	case []any:
		out := make([]*sourcekitd.Dict, 0, len(val))
		for _, e := range val {
			if m, ok := e.(map[string]any); ok {
				out = append(out, sourcekitd.NewResponse(c.dictToFields(m)))
			}
		}
		return out
	default:
		return v
	}
}

func translateError(err error) error {
	if serr, ok := err.(*sourcekitd.Error); ok {
		return serr
	}
	return &sourcekitd.Error{Kind: sourcekitd.ErrorFailed, Msg: err.Error()}
}
