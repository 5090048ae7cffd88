package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

type fakeServer struct {
	t   *testing.T
	dec *json.Decoder
	enc *json.Encoder
}

func newPair(t *testing.T, handler NotificationHandler) (*Client, *fakeServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	c := NewClient(clientConn, handler)
	t.Cleanup(func() {
		_ = c.Close()
		_ = serverConn.Close()
	})
	return c, &fakeServer{t: t, dec: json.NewDecoder(serverConn), enc: json.NewEncoder(serverConn)}
}

func (s *fakeServer) read() map[string]any {
	var msg map[string]any
	if err := s.dec.Decode(&msg); err != nil {
		s.t.Errorf("server read: %v", err)
		return nil
	}
	return msg
}

func (s *fakeServer) send(v any) {
	if err := s.enc.Encode(v); err != nil {
		s.t.Errorf("server write: %v", err)
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCallRoundTrip(t *testing.T) {
	testlog.Start(t)
	c, srv := newPair(t, nil)

	go func() {
		req := srv.read()
		if req["method"] != "list_dbs" {
			t.Errorf("method=%v", req["method"])
		}
		srv.send(map[string]any{"id": req["id"], "result": []string{"OVN_Northbound"}, "error": nil})
	}()

	dbs, err := c.ListDbs(testContext(t))
	if err != nil {
		t.Fatalf("list dbs: %v", err)
	}
	if len(dbs) != 1 || dbs[0] != "OVN_Northbound" {
		t.Fatalf("dbs=%v", dbs)
	}
}

func TestCallServerError(t *testing.T) {
	testlog.Start(t)
	c, srv := newPair(t, nil)

	go func() {
		req := srv.read()
		srv.send(map[string]any{"id": req["id"], "result": nil, "error": map[string]any{"error": "unknown database", "details": "nope"}})
	}()

	_, err := c.GetSchema(testContext(t), "nope")
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != "unknown database" || rpcErr.Details != "nope" {
		t.Fatalf("err=%v", err)
	}
}

func TestEchoRequestIsAnswered(t *testing.T) {
	testlog.Start(t)
	_, srv := newPair(t, nil)

	srv.send(map[string]any{"id": "echo", "method": "echo", "params": []any{"ping"}})
	resp := srv.read()
	if resp["id"] != "echo" {
		t.Fatalf("echo reply id=%v", resp["id"])
	}
	params, _ := resp["result"].([]any)
	if len(params) != 1 || params[0] != "ping" {
		t.Fatalf("echo result=%v", resp["result"])
	}
}

func TestNotificationsReachHandler(t *testing.T) {
	testlog.Start(t)
	got := make(chan string, 2)
	_, srv := newPair(t, func(method string, params []json.RawMessage) {
		got <- method + ":" + string(params[0])
	})

	srv.send(map[string]any{"id": nil, "method": "update", "params": []any{nil, map[string]any{}}})
	srv.send(map[string]any{"id": nil, "method": "locked", "params": []any{"ovn_event_lock"}})

	for _, want := range []string{"update:null", `locked:"ovn_event_lock"`} {
		select {
		case m := <-got:
			if m != want {
				t.Fatalf("notification=%q want %q", m, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("notification %q not delivered", want)
		}
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	testlog.Start(t)
	c, srv := newPair(t, nil)

	errc := make(chan error, 1)
	go func() {
		errc <- c.Call(testContext(t), "transact", []any{"db"}, nil)
	}()
	srv.read()
	_ = c.Close()

	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Fatalf("pending call err=%v", err)
	}
	if err := c.Call(testContext(t), "echo", nil, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("call after close err=%v", err)
	}
	select {
	case <-c.Done():
	default:
		t.Fatalf("done not closed")
	}
}

func TestCallHonoursContext(t *testing.T) {
	testlog.Start(t)
	c, srv := newPair(t, nil)
	go srv.read()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Call(ctx, "transact", nil, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in, network, addr string
		ok                bool
	}{
		{"tcp:127.0.0.1:6641", "tcp", "127.0.0.1:6641", true},
		{"tcp:[::1]:6641", "tcp", "[::1]:6641", true},
		{"unix:/var/run/ovn/ovnnb_db.sock", "unix", "/var/run/ovn/ovnnb_db.sock", true},
		{"tcp:127.0.0.1", "", "", false},
		{"ssl:127.0.0.1:6641", "", "", false},
		{"127.0.0.1:6641", "", "", false},
	}
	for _, tc := range cases {
		network, addr, err := ParseEndpoint(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseEndpoint(%q) err=%v", tc.in, err)
		}
		if tc.ok && (network != tc.network || addr != tc.addr) {
			t.Fatalf("ParseEndpoint(%q)=%s %s", tc.in, network, addr)
		}
		if !tc.ok && !errors.Is(err, ErrUnsupportedEndpoint) {
			t.Fatalf("ParseEndpoint(%q) err=%v", tc.in, err)
		}
	}
}
