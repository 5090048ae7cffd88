package nbtest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/danmuck/ovsfront/internal/ovsdb/jsonrpc"
)

var (
	ErrSchemaUnavailable = errors.New("nbtest: schema unavailable")
	ErrServerDown        = errors.New("nbtest: server down")
)

// FakeServer stands in for ovsdb-server behind a JSON-RPC client. Dial
// hands out FakeClients that answer get_schema, monitor and lock locally
// and send everything else to RPC.
type FakeServer struct {
	RPC FakeRPC

	mu         sync.Mutex
	schema     string
	dump       string
	failSchema int
	lockGrant  bool
	onMonitor  func()
	onLock     func()
	down       bool
	handler    jsonrpc.NotificationHandler
	dials      int
	locks      []string
	clients    []*FakeClient
}

func NewFakeServer() *FakeServer {
	return &FakeServer{schema: SchemaJSON, dump: `{}`, lockGrant: true}
}

// SetDump sets the table-updates returned by monitor.
func (s *FakeServer) SetDump(dump string) {
	s.mu.Lock()
	s.dump = dump
	s.mu.Unlock()
}

// FailSchema makes the next n get_schema calls fail.
func (s *FakeServer) FailSchema(n int) {
	s.mu.Lock()
	s.failSchema = n
	s.mu.Unlock()
}

// GrantLock sets the locked field of lock replies.
func (s *FakeServer) GrantLock(granted bool) {
	s.mu.Lock()
	s.lockGrant = granted
	s.mu.Unlock()
}

// OnMonitor runs fn inside the monitor call, before its reply.
func (s *FakeServer) OnMonitor(fn func()) {
	s.mu.Lock()
	s.onMonitor = fn
	s.mu.Unlock()
}

// OnLock runs fn inside the lock call, before its reply.
func (s *FakeServer) OnLock(fn func()) {
	s.mu.Lock()
	s.onLock = fn
	s.mu.Unlock()
}

// Shutdown drops every client and refuses further dials.
func (s *FakeServer) Shutdown() {
	s.mu.Lock()
	s.down = true
	s.mu.Unlock()
	s.CloseClients()
}

func (s *FakeServer) Dial(ctx context.Context, endpoint string, handler jsonrpc.NotificationHandler) (*FakeClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down {
		return nil, ErrServerDown
	}
	s.dials++
	s.handler = handler
	c := &FakeClient{server: s, done: make(chan struct{})}
	s.clients = append(s.clients, c)
	return c, nil
}

func (s *FakeServer) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *FakeServer) Locks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.locks...)
}

// CloseClients drops every dialed client, as a server restart would.
func (s *FakeServer) CloseClients() {
	s.mu.Lock()
	clients := append([]*FakeClient(nil), s.clients...)
	s.mu.Unlock()
	for _, c := range clients {
		_ = c.Close()
	}
}

// Notify delivers a notification to the most recent client's handler.
func (s *FakeServer) Notify(method string, params ...any) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler == nil {
		return
	}
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			panic(err)
		}
		raw = append(raw, data)
	}
	handler(method, raw)
}

// Update sends an update notification carrying table-updates JSON.
func (s *FakeServer) Update(updates string) {
	s.Notify("update", "ovsfront", json.RawMessage(updates))
}

type FakeClient struct {
	server *FakeServer
	once   sync.Once
	done   chan struct{}
}

func (c *FakeClient) Call(ctx context.Context, method string, params []any, result any) error {
	return c.server.RPC.Call(ctx, method, params, result)
}

func (c *FakeClient) GetSchema(ctx context.Context, db string) (json.RawMessage, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSchema > 0 {
		s.failSchema--
		return nil, ErrSchemaUnavailable
	}
	return json.RawMessage(s.schema), nil
}

func (c *FakeClient) Monitor(ctx context.Context, db string, monitorID any, requests map[string]any) (json.RawMessage, error) {
	s := c.server
	s.mu.Lock()
	fn, dump := s.onMonitor, s.dump
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
	return json.RawMessage(dump), nil
}

func (c *FakeClient) Lock(ctx context.Context, id string) (bool, error) {
	s := c.server
	s.mu.Lock()
	s.locks = append(s.locks, id)
	fn, granted := s.onLock, s.lockGrant
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
	return granted, nil
}

func (c *FakeClient) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *FakeClient) Done() <-chan struct{} {
	return c.done
}
