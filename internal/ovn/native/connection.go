package native

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/ovs/vsctl"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
	"github.com/danmuck/ovsfront/internal/ovsdb/jsonrpc"
	"github.com/danmuck/ovsfront/internal/tools"
)

const (
	DefaultTimeout = 60 * time.Second
	monitorID      = "ovsfront"
)

var ErrNotStarted = errors.New("native: connection not started")

// Client is the part of the JSON-RPC client a Connection drives.
type Client interface {
	idl.RPC
	GetSchema(ctx context.Context, db string) (json.RawMessage, error)
	Monitor(ctx context.Context, db string, monitorID any, requests map[string]any) (json.RawMessage, error)
	Lock(ctx context.Context, id string) (bool, error)
	Close() error
	Done() <-chan struct{}
}

// Dialer opens a Client; handler receives the server notifications.
type Dialer func(ctx context.Context, endpoint string, handler jsonrpc.NotificationHandler) (Client, error)

// DialJSONRPC is the Dialer used outside tests.
func DialJSONRPC(ctx context.Context, endpoint string, handler jsonrpc.NotificationHandler) (Client, error) {
	client, err := jsonrpc.Dial(ctx, endpoint, handler)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SchemaBackoff bounds the schema retry after set-manager has been run.
var SchemaBackoff = wait.Backoff{Duration: 10 * time.Millisecond, Factor: 2, Steps: 7}

type ConnectionConfig struct {
	Endpoint string
	Database string
	Timeout  time.Duration
	// Tables limits the replica; empty registers the whole schema.
	Tables []string
	Dial   Dialer
	// Runner executes ovs-vsctl set-manager when the first schema fetch
	// fails.
	Runner tools.CommandRunner
}

// Hooks let a caller observe the connection. OnChanges and OnLock may run
// on the client read loop and must not block.
type Hooks struct {
	// BeforeMonitor runs after the schema is known and before the initial
	// dump is requested.
	BeforeMonitor func(ctx context.Context, c Client) error
	// OnChanges receives the changes of the initial dump and of every
	// later update, in order.
	OnChanges func(changes []idl.RowChange)
	// OnLock receives locked (true) and stolen (false) notifications.
	OnLock func(held bool)
}

// Connection keeps a monitored replica of one database.
type Connection struct {
	cfg   ConnectionConfig
	hooks Hooks

	mu      sync.Mutex
	client  Client
	replica atomic.Pointer[idl.Replica]

	applyMu sync.Mutex
	ready   bool
	backlog []json.RawMessage
	// gen numbers the dialed clients; notifications from an older client
	// are dropped.
	gen atomic.Uint64
}

func NewConnection(cfg ConnectionConfig, hooks Hooks) *Connection {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dial == nil {
		cfg.Dial = DialJSONRPC
	}
	if cfg.Runner == nil {
		cfg.Runner = tools.ExecRunner{}
	}
	return &Connection{cfg: cfg, hooks: hooks}
}

// Start connects, loads the schema and applies the initial dump. It is a
// no-op on a started connection.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return nil
	}
	return c.startLocked(ctx)
}

// Reconnect drops the current client, if any, and connects again. The
// replica is kept and brought up to date from the fresh dump, so OnChanges
// sees only what changed while the connection was down.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	return c.startLocked(ctx)
}

func (c *Connection) startLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.applyMu.Lock()
	c.ready = false
	c.backlog = nil
	c.applyMu.Unlock()

	gen := c.gen.Add(1)
	handler := func(method string, params []json.RawMessage) {
		if c.gen.Load() == gen {
			c.handle(method, params)
		}
	}
	client, schema, err := c.connect(ctx, handler)
	if err != nil {
		return err
	}
	replica := c.replica.Load()
	resync := replica != nil
	if !resync {
		replica, err = idl.NewReplica(schema, c.cfg.Tables...)
		if err != nil {
			_ = client.Close()
			return err
		}
		c.replica.Store(replica)
	}

	if c.hooks.BeforeMonitor != nil {
		if err := c.hooks.BeforeMonitor(ctx, client); err != nil {
			_ = client.Close()
			return err
		}
	}

	dump, err := client.Monitor(ctx, c.cfg.Database, monitorID, replica.MonitorRequests())
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("native: monitor %s: %w", c.cfg.Database, err)
	}
	if err := c.applyInitial(dump, resync); err != nil {
		_ = client.Close()
		return err
	}
	c.client = client
	logging.Infof("native.Connection.Start ready endpoint=%s db=%s tables=%d resync=%v", c.cfg.Endpoint, c.cfg.Database, len(replica.Tables()), resync)
	return nil
}

func (c *Connection) connect(ctx context.Context, handler jsonrpc.NotificationHandler) (Client, *idl.Schema, error) {
	client, schema, err := c.fetchSchema(ctx, handler)
	if err == nil {
		return client, schema, nil
	}
	logging.Warnf("native.Connection.connect schema_failed endpoint=%s err=%v", c.cfg.Endpoint, err)

	// The manager may not have been configured yet.
	if uriErr := vsctl.EnableConnectionURI(ctx, c.cfg.Runner, c.cfg.Endpoint); uriErr != nil {
		logging.Warnf("native.Connection.connect set_manager_failed err=%v", uriErr)
	}

	lastErr := err
	waitErr := wait.ExponentialBackoffWithContext(ctx, SchemaBackoff, func(ctx context.Context) (bool, error) {
		client, schema, err = c.fetchSchema(ctx, handler)
		if err != nil {
			lastErr = err
			return false, nil
		}
		return true, nil
	})
	if waitErr != nil {
		return nil, nil, fmt.Errorf("native: get schema %s from %s: %w", c.cfg.Database, c.cfg.Endpoint, lastErr)
	}
	return client, schema, nil
}

func (c *Connection) fetchSchema(ctx context.Context, handler jsonrpc.NotificationHandler) (Client, *idl.Schema, error) {
	client, err := c.cfg.Dial(ctx, c.cfg.Endpoint, handler)
	if err != nil {
		return nil, nil, err
	}
	raw, err := client.GetSchema(ctx, c.cfg.Database)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	schema, err := idl.ParseSchema(raw)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, schema, nil
}

func (c *Connection) applyInitial(dump json.RawMessage, resync bool) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if resync {
		changes, err := c.replica.Load().ResyncJSON(dump)
		if err != nil {
			return err
		}
		if len(changes) > 0 && c.hooks.OnChanges != nil {
			c.hooks.OnChanges(changes)
		}
	} else if err := c.applyLocked(dump); err != nil {
		return err
	}
	for _, upd := range c.backlog {
		if err := c.applyLocked(upd); err != nil {
			logging.Errorf("native.Connection.applyInitial backlog_failed err=%v", err)
		}
	}
	c.backlog = nil
	c.ready = true
	return nil
}

func (c *Connection) applyLocked(data json.RawMessage) error {
	changes, err := c.replica.Load().ApplyJSON(data)
	if err != nil {
		return err
	}
	if len(changes) > 0 && c.hooks.OnChanges != nil {
		c.hooks.OnChanges(changes)
	}
	return nil
}

func (c *Connection) handle(method string, params []json.RawMessage) {
	switch method {
	case "update":
		if len(params) < 2 {
			logging.Warnf("native.Connection.handle short_update params=%d", len(params))
			return
		}
		c.applyMu.Lock()
		defer c.applyMu.Unlock()
		if !c.ready {
			c.backlog = append(c.backlog, params[1])
			return
		}
		if err := c.applyLocked(params[1]); err != nil {
			logging.Errorf("native.Connection.handle update_failed err=%v", err)
		}
	case "locked", "stolen":
		logging.Infof("native.Connection.handle lock event=%s", method)
		if c.hooks.OnLock != nil {
			c.hooks.OnLock(method == "locked")
		}
	default:
		logging.Debugf("native.Connection.handle ignored method=%s", method)
	}
}

func (c *Connection) Replica() *idl.Replica {
	return c.replica.Load()
}

// RPC returns the started client, or nil before Start succeeded.
func (c *Connection) RPC() idl.RPC {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	return c.client
}

func (c *Connection) Database() string {
	return c.cfg.Database
}

// Done is closed when the underlying client goes away.
func (c *Connection) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.client.Done()
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
