// Package jsonrpc is an OVSDB (RFC 7047) JSON-RPC 1.0 client.
package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/danmuck/ovsfront/internal/logging"
)

var (
	ErrClosed              = errors.New("jsonrpc: connection closed")
	ErrUnsupportedEndpoint = errors.New("jsonrpc: unsupported endpoint")
)

// Error is an error object returned by the server.
type Error struct {
	Code    string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details == "" {
		return "jsonrpc: " + e.Code
	}
	return "jsonrpc: " + e.Code + ": " + e.Details
}

// NotificationHandler receives server notifications such as update,
// locked and stolen. It runs on the read loop and must not block on Call.
type NotificationHandler func(method string, params []json.RawMessage)

type message struct {
	ID     json.RawMessage   `json:"id,omitempty"`
	Method string            `json:"method,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
	Error  json.RawMessage   `json:"error,omitempty"`
}

type request struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     any    `json:"id"`
}

type response struct {
	Result any `json:"result"`
	Error  any `json:"error"`
	ID     any `json:"id"`
}

type reply struct {
	result json.RawMessage
	err    error
}

type Client struct {
	conn    net.Conn
	handler NotificationHandler

	wmu sync.Mutex
	enc *json.Encoder

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan reply
	err     error
	done    chan struct{}
}

// Dial connects to an OVSDB endpoint of the form tcp:HOST:PORT or
// unix:PATH.
func Dial(ctx context.Context, endpoint string, handler NotificationHandler) (*Client, error) {
	network, addr, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: dial %s: %w", endpoint, err)
	}
	logging.Debugf("jsonrpc.Dial connected endpoint=%s", endpoint)
	return NewClient(conn, handler), nil
}

// ParseEndpoint splits an OVSDB connection string into a net network and
// address.
func ParseEndpoint(endpoint string) (network, addr string, err error) {
	proto, rest, ok := strings.Cut(endpoint, ":")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedEndpoint, endpoint)
	}
	switch proto {
	case "tcp":
		i := strings.LastIndex(rest, ":")
		if i < 0 {
			return "", "", fmt.Errorf("%w: %q has no port", ErrUnsupportedEndpoint, endpoint)
		}
		host, port := rest[:i], rest[i+1:]
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return "", "", fmt.Errorf("%w: %q bad port", ErrUnsupportedEndpoint, endpoint)
		}
		return "tcp", net.JoinHostPort(strings.Trim(host, "[]"), port), nil
	case "unix":
		return "unix", rest, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedEndpoint, endpoint)
	}
}

// NewClient wraps an established connection and starts reading from it.
func NewClient(conn net.Conn, handler NotificationHandler) *Client {
	c := &Client{
		conn:    conn,
		handler: handler,
		enc:     json.NewEncoder(conn),
		pending: make(map[uint64]chan reply),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends a request and decodes its result into result, which may be
// nil to discard it.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) error {
	if params == nil {
		params = []any{}
	}
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(request{Method: method, Params: params, ID: id}); err != nil {
		c.forget(id)
		return fmt.Errorf("jsonrpc: send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(r.result, result); err != nil {
			return fmt.Errorf("jsonrpc: decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.enc.Encode(v)
}

func (c *Client) readLoop() {
	dec := json.NewDecoder(c.conn)
	for {
		var msg message
		if err := dec.Decode(&msg); err != nil {
			c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}
		switch {
		case msg.Method == "echo" && !isNull(msg.ID):
			params := make([]any, 0, len(msg.Params))
			for _, p := range msg.Params {
				params = append(params, p)
			}
			if err := c.write(response{Result: params, ID: msg.ID}); err != nil {
				logging.Warnf("jsonrpc.Client.readLoop echo_failed err=%v", err)
			}
		case msg.Method != "":
			if c.handler != nil {
				c.handler(msg.Method, msg.Params)
			} else {
				logging.Debugf("jsonrpc.Client.readLoop unhandled method=%s", msg.Method)
			}
		default:
			c.deliver(msg)
		}
	}
}

func (c *Client) deliver(msg message) {
	id, err := strconv.ParseUint(string(msg.ID), 10, 64)
	if err != nil {
		logging.Warnf("jsonrpc.Client.deliver bad_id id=%s", msg.ID)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		logging.Debugf("jsonrpc.Client.deliver orphan id=%d", id)
		return
	}

	if !isNull(msg.Error) {
		ch <- reply{err: decodeError(msg.Error)}
		return
	}
	ch <- reply{result: msg.Result}
}

func decodeError(raw json.RawMessage) error {
	var e Error
	if err := json.Unmarshal(raw, &e); err == nil && e.Code != "" {
		return &e
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &Error{Code: s}
	}
	return &Error{Code: string(raw)}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	c.err = err
	pending := c.pending
	c.pending = make(map[uint64]chan reply)
	close(c.done)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- reply{err: err}
	}
	_ = c.conn.Close()
}

// Close shuts the connection and fails outstanding calls with ErrClosed.
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return nil
}

// Done is closed once the connection has failed or been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the connection ended, or nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
