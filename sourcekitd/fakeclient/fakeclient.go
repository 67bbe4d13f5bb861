// Package fakeclient implements an in-memory sourcekitd.Client for tests,
// per spec §9's explicit guidance that worker tests should not depend on
// the real dylib. It lets a test script responses to specific request
// kinds, inject notifications, and simulate a daemon crash.
package fakeclient

import (
	"sort"
	"sync"

	"github.com/sourcekitd/langworker/sourcekitd"
)

// Responder produces a response (or error) for one request. Tests install
// one per request kind via Client.Handle.
type Responder func(req *sourcekitd.Dict) (*sourcekitd.Dict, error)

// Client is a fully synchronous, in-process sourcekitd.Client. SendAsync
// invokes done synchronously on the calling goroutine, which is adequate
// because the worker always routes the callback back onto its own lane
// before acting on it.
type Client struct {
	mu        sync.Mutex
	responses map[string]Responder
	handlers  map[int]sourcekitd.NotificationHandler
	nextTok   int
	closed    bool

	keys     *sourcekitd.Namespace
	requests *sourcekitd.Namespace
	values   *sourcekitd.Namespace

	uidSeq uint64
}

func New() *Client {
	c := &Client{
		responses: make(map[string]Responder),
		handlers:  make(map[int]sourcekitd.NotificationHandler),
	}
	c.keys = sourcekitd.NewNamespace("key", c.resolve)
	c.requests = sourcekitd.NewNamespace("request", c.resolve)
	c.values = sourcekitd.NewNamespace("value", c.resolve)
	return c
}

func (c *Client) resolve(name string) uint64 {
	c.uidSeq++
	return c.uidSeq
}

// Handle installs a Responder for every request whose "key.request" field
// equals kind. Later calls to Handle for the same kind replace the prior
// Responder.
func (c *Client) Handle(kind string, r Responder) {
	c.mu.Lock()
	c.responses[kind] = r
	c.mu.Unlock()
}

func (c *Client) SendSync(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, &sourcekitd.Error{Kind: sourcekitd.ErrorConnectionInterrupted, Msg: "fakeclient: crashed"}
	}

	kind, _ := req.GetUID(sourcekitd.KeyRequest)
	c.mu.Lock()
	r, ok := c.responses[kind.String()]
	c.mu.Unlock()
	if !ok {
		return sourcekitd.NewResponse(nil), nil
	}
	return r(req)
}

func (c *Client) SendAsync(req *sourcekitd.Dict, done func(*sourcekitd.Dict, error)) {
	resp, err := c.SendSync(req)
	done(resp, err)
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

// Notify delivers note to every registered handler, in registration order,
// simulating an unsolicited daemon push (e.g. kind=documentupdate, or a
// sema_enabled crash-recovery signal).
func (c *Client) Notify(note *sourcekitd.Dict) {
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
	for _, h := range handlers {
		h(note)
	}
}

// Crash simulates the daemon connection dying: every SendSync/SendAsync
// call made after Crash returns a ConnectionInterrupted error until Revive
// is called.
func (c *Client) Crash() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Client) Revive() {
	c.mu.Lock()
	c.closed = false
	c.mu.Unlock()
}

func (c *Client) Keys() *sourcekitd.Namespace     { return c.keys }
func (c *Client) Requests() *sourcekitd.Namespace { return c.requests }
func (c *Client) Values() *sourcekitd.Namespace    { return c.values }

func (c *Client) Close() error { return nil }
