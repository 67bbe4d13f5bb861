package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"
)

type ErrorCode int
type MessageID json.RawMessage

const (
	EParseError       ErrorCode = -32700
	EInvalidRequest   ErrorCode = -32600
	EMethodNotFound   ErrorCode = -32601
	EInvalidParams    ErrorCode = -32602
	EInternalError    ErrorCode = -32603
	ERequestCancelled ErrorCode = -32800
)

type handler struct {
	notification func(ctx context.Context, val any)
	request      func(ctx context.Context, val any) (any, error)
	pType        reflect.Type
}

type pendingCall struct {
	reply chan *Frame
}

// Connection is a JSON-RPC 2.0 connection over a Content-Length framed
// stream (lsp/frames.go). It dispatches inbound requests/notifications to
// handlers registered with HandleRequest/HandleNotification, and lets the
// server drive outbound requests (e.g. workspace/applyEdit) via Call, and
// outbound notifications (e.g. textDocument/publishDiagnostics) via Notify.
//
// Out of scope per the spec: this package is the "LSP JSON transport and
// message decoding" collaborator, kept only so the repository is runnable
// end to end; it is not part of the core language worker.
type Connection struct {
	handlers map[string]handler

	mu      sync.Mutex
	pending map[string]*pendingCall
	nextID  atomic.Int64

	// cancelled tracks request IDs that received a $/cancelRequest,
	// exposed through CancelledBefore. Nothing in this repository calls
	// CancelledBefore: a cancelled request still runs to completion and
	// its reply is still sent (spec §5, §9).
	cancelled sync.Map

	out    chan *Frame
	cancel context.CancelFunc
}

func NewConnection() *Connection {
	c := &Connection{
		handlers: make(map[string]handler),
		pending:  make(map[string]*pendingCall),
	}
	HandleNotification(c, "$/cancelRequest", c.handleCancel)
	return c
}

func (c *Connection) handleCancel(_ context.Context, params CancelParams) {
	c.cancelled.Store(string(params.ID), struct{}{})
}

// CancelledBefore reports whether id was cancelled by the client. Once
// observed it stays true: a stale callback's effects should still be
// dropped even if it completes after the cancellation window.
func (c *Connection) CancelledBefore(id MessageID) bool {
	_, ok := c.cancelled.Load(string(id))
	return ok
}

func HandleNotification[T any](c *Connection, method string, fn func(ctx context.Context, val T)) {
	c.handlers[method] = handler{
		notification: func(ctx context.Context, val any) {
			fn(ctx, val.(T))
		},
		pType: reflect.TypeOf((*T)(nil)).Elem(),
	}
}

func HandleRequest[T any, U any](c *Connection, method string, fn func(ctx context.Context, val T) (U, error)) {
	c.handlers[method] = handler{
		request: func(ctx context.Context, val any) (any, error) {
			return fn(ctx, val.(T))
		},
		pType: reflect.TypeOf((*T)(nil)).Elem(),
	}
}

func (c *Connection) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	errCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(ctx)
	c.out = make(chan *Frame)
	c.cancel = cancel
	defer cancel()

	go func() {
		if err := WriteFrames(ctx, out, c.out); err != nil {
			FrameLogger("output error", []byte(err.Error()))
			errCh <- err
		}
		close(errCh)
	}()

	for frame, err := range ReadFrames(in) {
		if err != nil {
			FrameLogger("input error", []byte(err.Error()))
			break
		}
		c.handleFrame(ctx, frame)
		select {
		case err := <-errCh:
			return err
		default:
		}
	}
	cancel()
	return <-errCh
}

func (c *Connection) Exit() {
	c.cancel()
}

func (c *Connection) Notify(method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		panic(err)
	}
	c.send(&Frame{JsonRPC: "2.0", Method: method, Params: raw})
}

// Call sends an outbound request (server-to-client, e.g. workspace/applyEdit)
// and blocks until the matching response arrives or ctx is done. result is
// populated via json.Unmarshal from the response's result field.
func (c *Connection) Call(ctx context.Context, method string, params any, result any) error {
	id := c.nextID.Add(1)
	idBytes, err := json.Marshal(id)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	call := &pendingCall{reply: make(chan *Frame, 1)}
	key := string(idBytes)
	c.mu.Lock()
	c.pending[key] = call
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}()

	c.send(&Frame{JsonRPC: "2.0", Id: json.RawMessage(idBytes), Method: method, Params: raw})

	select {
	case reply := <-call.reply:
		if reply.Error != nil {
			return fmt.Errorf("%s: %s", method, reply.Error.Message)
		}
		if result == nil {
			return nil
		}
		return json.Unmarshal(reply.Result, result)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) send(frame *Frame) {
	c.out <- frame
}

func (c *Connection) handleFrame(ctx context.Context, frame *Frame) {
	if frame.Batch != nil {
		c.respondError(nil, EParseError, fmt.Errorf("batch requests are not yet supported"))
		return
	}

	// A reply to one of our own outbound Calls has no Method, and an Id we
	// already have a pendingCall for.
	if frame.Method == "" && len(frame.Id) > 0 {
		c.mu.Lock()
		call, ok := c.pending[string(frame.Id)]
		c.mu.Unlock()
		if ok {
			call.reply <- frame
			return
		}
	}

	msgId := frame.Id
	h, ok := c.handlers[frame.Method]
	if !ok {
		c.respondError(msgId, EMethodNotFound, fmt.Errorf("%s not found", frame.Method))
		return
	}

	param := reflect.New(h.pType)
	if err := json.Unmarshal(frame.Params, param.Interface()); err != nil {
		c.respondError(msgId, EInvalidParams, err)
		return
	}

	if h.notification != nil {
		if frame.Id != nil {
			c.respondError(msgId, EInvalidRequest, fmt.Errorf("notification cannot have an 'id'"))
		}
		h.notification(ctx, param.Elem().Interface())
		return
	}

	if len(frame.Id) == 0 {
		return
	}
	result, err := h.request(ctx, param.Elem().Interface())
	if err != nil {
		c.respondError(msgId, EInternalError, err)
		return
	}
	c.respond(msgId, result)
}

func (c *Connection) respond(id json.RawMessage, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		panic(err)
	}
	c.send(&Frame{JsonRPC: "2.0", Id: id, Result: raw})
}

func (c *Connection) respondError(id json.RawMessage, code ErrorCode, err error) {
	if id == nil {
		return
	}
	c.send(&Frame{JsonRPC: "2.0", Id: id, Error: &RpcError{Code: code, Message: err.Error()}})
}
