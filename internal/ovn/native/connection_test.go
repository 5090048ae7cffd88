package native

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/danmuck/ovsfront/internal/ovn"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
	"github.com/danmuck/ovsfront/internal/ovsdb/jsonrpc"
	"github.com/danmuck/ovsfront/internal/testutil/nbtest"
	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{name}, args...))
	return nil, nil, 0, nil
}

type changeLog struct {
	mu     sync.Mutex
	events []string
}

func (l *changeLog) record(changes []idl.RowChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range changes {
		row := ch.Row
		if row == nil {
			row = ch.Old
		}
		l.events = append(l.events, string(ch.Event)+":"+row.String("name"))
	}
}

func (l *changeLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func newTestConnection(srv *nbtest.FakeServer, runner *fakeRunner, hooks Hooks) *Connection {
	return NewConnection(ConnectionConfig{
		Endpoint: "tcp:127.0.0.1:6641",
		Database: ovn.Database,
		Timeout:  2 * time.Second,
		Runner:   runner,
		Dial: func(ctx context.Context, endpoint string, handler jsonrpc.NotificationHandler) (Client, error) {
			return srv.Dial(ctx, endpoint, handler)
		},
	}, hooks)
}

const portCreate = `{"Logical_Port":{"bbbbbbbb-0000-0000-0000-000000000001":{"new":{"name":"port1","up":true}}}}`

func TestConnectionStartAppliesDumpAndUpdates(t *testing.T) {
	testlog.Start(t)
	srv := nbtest.NewFakeServer()
	srv.SetDump(portCreate)

	var log changeLog
	var order []string
	conn := newTestConnection(srv, &fakeRunner{}, Hooks{
		BeforeMonitor: func(ctx context.Context, c Client) error {
			order = append(order, "before-monitor")
			return nil
		},
		OnChanges: func(changes []idl.RowChange) {
			order = append(order, "changes")
			log.record(changes)
		},
	})
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := conn.Start(context.Background()); err != nil || srv.Dials() != 1 {
		t.Fatalf("second start should be a no-op: err=%v dials=%d", err, srv.Dials())
	}
	if diff := cmp.Diff([]string{"before-monitor", "changes"}, order); diff != "" {
		t.Fatalf("hook order (-want +got):\n%s", diff)
	}

	srv.Update(`{"Logical_Port":{"bbbbbbbb-0000-0000-0000-000000000001":{"old":{"up":true},"new":{"name":"port1","up":false}}}}`)
	if diff := cmp.Diff([]string{"create:port1", "update:port1"}, log.list()); diff != "" {
		t.Fatalf("changes (-want +got):\n%s", diff)
	}
	row, err := conn.Replica().RowByValue(ovn.TableLPort, "name", "port1")
	if err != nil {
		t.Fatalf("row: %v", err)
	}
	if up, _ := row.Bool("up"); up {
		t.Fatalf("replica not updated")
	}
	if conn.RPC() == nil || conn.Database() != ovn.Database {
		t.Fatalf("connection accessors not populated")
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestConnectionReconnectResyncsReplica(t *testing.T) {
	testlog.Start(t)
	srv := nbtest.NewFakeServer()
	srv.SetDump(portCreate)

	var log changeLog
	monitors := 0
	conn := newTestConnection(srv, &fakeRunner{}, Hooks{
		BeforeMonitor: func(ctx context.Context, c Client) error {
			monitors++
			return nil
		},
		OnChanges: log.record,
	})
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	replica := conn.Replica()
	first := conn.RPC()

	srv.SetDump(`{"Logical_Port":{"bbbbbbbb-0000-0000-0000-000000000001":{"new":{"name":"port1","up":false}}}}`)
	if err := conn.Reconnect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if conn.Replica() != replica {
		t.Fatalf("reconnect replaced the replica")
	}
	if conn.RPC() == first || srv.Dials() != 2 || monitors != 2 {
		t.Fatalf("reconnect did not dial again: dials=%d monitors=%d", srv.Dials(), monitors)
	}
	select {
	case <-first.(*nbtest.FakeClient).Done():
	default:
		t.Fatalf("old client left open")
	}
	if diff := cmp.Diff([]string{"create:port1", "update:port1"}, log.list()); diff != "" {
		t.Fatalf("changes (-want +got):\n%s", diff)
	}

	srv.Update(`{"Logical_Port":{"bbbbbbbb-0000-0000-0000-000000000002":{"new":{"name":"port2","up":true}}}}`)
	if diff := cmp.Diff([]string{"create:port1", "update:port1", "create:port2"}, log.list()); diff != "" {
		t.Fatalf("changes after reconnect (-want +got):\n%s", diff)
	}
}

func TestConnectionBuffersUpdatesDuringDump(t *testing.T) {
	testlog.Start(t)
	srv := nbtest.NewFakeServer()
	srv.SetDump(portCreate)
	srv.OnMonitor(func() {
		srv.Update(`{"Logical_Port":{"bbbbbbbb-0000-0000-0000-000000000002":{"new":{"name":"port2","up":false}}}}`)
	})

	var log changeLog
	conn := newTestConnection(srv, &fakeRunner{}, Hooks{OnChanges: log.record})
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if diff := cmp.Diff([]string{"create:port1", "create:port2"}, log.list()); diff != "" {
		t.Fatalf("changes (-want +got):\n%s", diff)
	}
}

func TestConnectionEnablesManagerAndRetries(t *testing.T) {
	testlog.Start(t)
	srv := nbtest.NewFakeServer()
	srv.FailSchema(3)
	runner := &fakeRunner{}

	conn := newTestConnection(srv, runner, Hooks{})
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	want := [][]string{{"ovs-vsctl", "set-manager", "ptcp:6641:127.0.0.1"}}
	if diff := cmp.Diff(want, runner.calls); diff != "" {
		t.Fatalf("runner calls (-want +got):\n%s", diff)
	}
	if srv.Dials() != 4 {
		t.Fatalf("dials=%d", srv.Dials())
	}
}

func TestConnectionGivesUpAfterBackoff(t *testing.T) {
	testlog.Start(t)
	saved := SchemaBackoff
	SchemaBackoff = wait.Backoff{Duration: time.Millisecond, Factor: 1, Steps: 3}
	t.Cleanup(func() { SchemaBackoff = saved })

	srv := nbtest.NewFakeServer()
	srv.FailSchema(100)
	conn := newTestConnection(srv, &fakeRunner{}, Hooks{})
	err := conn.Start(context.Background())
	if !errors.Is(err, nbtest.ErrSchemaUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if conn.RPC() != nil {
		t.Fatalf("failed start left a client behind")
	}
}

func TestConnectionForwardsLockNotifications(t *testing.T) {
	testlog.Start(t)
	srv := nbtest.NewFakeServer()
	var held []bool
	conn := newTestConnection(srv, &fakeRunner{}, Hooks{OnLock: func(h bool) { held = append(held, h) }})
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	srv.Notify("locked", "ovn_event_lock")
	srv.Notify("stolen", "ovn_event_lock")
	if diff := cmp.Diff([]bool{true, false}, held); diff != "" {
		t.Fatalf("lock events (-want +got):\n%s", diff)
	}
}

func TestConnectionBacksNativeAPI(t *testing.T) {
	testlog.Start(t)
	srv := nbtest.NewFakeServer()
	srv.RPC.Handler = func(method string, params []any) (any, error) {
		return nbtest.OKResults(params, "ffffffff-0000-0000-0000-000000000009"), nil
	}
	conn := newTestConnection(srv, &fakeRunner{}, Hooks{})
	api := New(conn, time.Second)

	if _, err := api.CreateLSwitch("neutron-x", true, nil).Execute(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("unstarted err=%v", err)
	}
	if err := conn.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := api.CreateLSwitch("neutron-x", true, nil).Execute(context.Background())
	if err != nil || res != "ffffffff-0000-0000-0000-000000000009" {
		t.Fatalf("res=%v err=%v", res, err)
	}
}
