package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/observability"
	"github.com/danmuck/ovsfront/internal/ovn/native"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
)

// ErrDisconnected is returned by Run when the database connection drops
// and cannot be reestablished within ReconnectBackoff.
var ErrDisconnected = errors.New("monitor: connection lost")

// ReconnectBackoff paces reconnect attempts after the connection drops.
var ReconnectBackoff = wait.Backoff{Duration: 100 * time.Millisecond, Factor: 2, Jitter: 0.1, Steps: 10}

// DefaultEventLock is the OVSDB lock that elects which process handles
// port events.
const DefaultEventLock = "ovn_event_lock"

// Connection is a northbound connection that dispatches port status
// events. When several processes share the database only the holder of
// the event lock dispatches.
type Connection struct {
	lockName string
	handler  *NotifyHandler
	conn     *native.Connection

	mu        sync.Mutex
	hasLock   bool
	contended bool
	// lockSeq counts locked/stolen notifications. A lock reply only sets
	// the state when no notification overtook it.
	lockSeq uint64
	backoff wait.Backoff

	createUp   *RowEvent
	createDown *RowEvent
	updateUp   *RowEvent
	updateDown *RowEvent
}

func NewConnection(cfg native.ConnectionConfig, lockName string, ports PortStatusHandler) *Connection {
	if lockName == "" {
		lockName = DefaultEventLock
	}
	c := &Connection{
		lockName:   lockName,
		backoff:    ReconnectBackoff,
		handler:    NewNotifyHandler(),
		createUp:   NewLPortCreateUpEvent(ports),
		createDown: NewLPortCreateDownEvent(ports),
		updateUp:   NewLPortUpdateUpEvent(ports),
		updateDown: NewLPortUpdateDownEvent(ports),
	}
	c.handler.Watch(c.createUp, c.createDown, c.updateUp, c.updateDown)
	c.conn = native.NewConnection(cfg, native.Hooks{
		BeforeMonitor: c.requestLock,
		OnChanges:     c.onChanges,
		OnLock:        c.onLock,
	})
	return c
}

// Start connects and processes the initial dump. Ports in the dump are
// reported through the create events, which are unwatched afterwards.
func (c *Connection) Start(ctx context.Context) error {
	if err := c.conn.Start(ctx); err != nil {
		return err
	}
	c.UnwatchLPortCreateEvents()
	return nil
}

// Native exposes the underlying connection, e.g. to back a native.API.
func (c *Connection) Native() *native.Connection {
	return c.conn
}

func (c *Connection) Handler() *NotifyHandler {
	return c.handler
}

// UnwatchLPortCreateEvents stops reacting to port creation; only the
// initial dump needs those events.
func (c *Connection) UnwatchLPortCreateEvents() {
	c.handler.Unwatch(c.createUp, c.createDown)
}

func (c *Connection) requestLock(ctx context.Context, client native.Client) error {
	c.mu.Lock()
	seq := c.lockSeq
	c.mu.Unlock()

	locked, err := client.Lock(ctx, c.lockName)
	if err != nil {
		return err
	}

	c.mu.Lock()
	overtaken := c.lockSeq != seq
	if !overtaken {
		c.hasLock = locked
		c.contended = !locked
	}
	c.mu.Unlock()
	logging.Infof("monitor.Connection.requestLock lock=%s granted=%v overtaken=%v", c.lockName, locked, overtaken)
	return nil
}

func (c *Connection) onLock(held bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lockSeq++
	c.hasLock = held
	if !held {
		c.contended = true
	}
}

// HasLock reports whether this process holds the event lock.
func (c *Connection) HasLock() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasLock
}

func (c *Connection) onChanges(changes []idl.RowChange) {
	for _, ch := range changes {
		row := ch.Row
		if row == nil {
			row = ch.Old
		}
		c.Notify(ch.Event, row, ch.Old)
	}
}

// Notify forwards one change to the handler unless the event lock is
// contended and held elsewhere.
func (c *Connection) Notify(event idl.Event, row, old *idl.Row) {
	c.mu.Lock()
	gated := c.contended && !c.hasLock
	c.mu.Unlock()
	if gated {
		logging.Debugf("monitor.Connection.Notify no_lock event=%s", event)
		observability.RecordMonitorEvent(row.Table, string(event), false)
		return
	}
	if c.handler.Notify(event, row, old) == 0 {
		observability.RecordMonitorEvent(row.Table, string(event), false)
	}
}

// Run blocks until ctx is cancelled, then shuts the handler down. When the
// connection drops it reconnects, requests the event lock again and
// resyncs the replica; it gives up with ErrDisconnected once the reconnect
// backoff is spent.
func (c *Connection) Run(ctx context.Context) error {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.conn.Done():
		}
		logging.Warnf("monitor.Connection.Run disconnected lock=%s", c.lockName)
		if err := c.reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Connection) reconnect(ctx context.Context) error {
	var lastErr error
	attempts := 0
	err := wait.ExponentialBackoffWithContext(ctx, c.backoff, func(ctx context.Context) (bool, error) {
		attempts++
		if err := c.conn.Reconnect(ctx); err != nil {
			lastErr = err
			logging.Debugf("monitor.Connection.reconnect attempt=%d err=%v", attempts, err)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return fmt.Errorf("%w after %d attempts: %w", ErrDisconnected, attempts, lastErr)
	}
	logging.Infof("monitor.Connection.reconnect ok attempts=%d has_lock=%v", attempts, c.HasLock())
	return nil
}

func (c *Connection) Close() {
	if err := c.conn.Close(); err != nil {
		logging.Warnf("monitor.Connection.Close err=%v", err)
	}
	c.handler.Shutdown()
}
