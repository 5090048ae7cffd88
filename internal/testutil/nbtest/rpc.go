package nbtest

import (
	"context"
	"encoding/json"
	"sync"
)

// Call is one recorded RPC.
type Call struct {
	Method string
	Params []any
}

// FakeRPC records calls and answers them through Handler. Replies are
// passed through JSON so they decode exactly as a real client would.
type FakeRPC struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(method string, params []any) (any, error)
}

func (f *FakeRPC) Call(ctx context.Context, method string, params []any, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: method, Params: params})
	handler := f.Handler
	f.mu.Unlock()

	var reply any
	if handler != nil {
		var err error
		reply, err = handler(method, params)
		if err != nil {
			return err
		}
	}
	if result == nil {
		return nil
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (f *FakeRPC) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Transactions returns the operations of every transact call, decoded
// into generic JSON values.
func (f *FakeRPC) Transactions() [][]map[string]any {
	var out [][]map[string]any
	for _, c := range f.Calls() {
		if c.Method != "transact" || len(c.Params) < 1 {
			continue
		}
		var ops []map[string]any
		for _, p := range c.Params[1:] {
			data, err := json.Marshal(p)
			if err != nil {
				continue
			}
			var op map[string]any
			if err := json.Unmarshal(data, &op); err != nil {
				continue
			}
			ops = append(ops, op)
		}
		out = append(out, ops)
	}
	return out
}

// OKResults answers a transact call with one empty success per operation,
// giving inserts a fresh uuid from ids in order.
func OKResults(params []any, ids ...string) []map[string]any {
	out := make([]map[string]any, 0, len(params))
	next := 0
	for _, p := range params[1:] {
		res := map[string]any{}
		data, _ := json.Marshal(p)
		var op struct {
			Op string `json:"op"`
		}
		_ = json.Unmarshal(data, &op)
		if op.Op == "insert" && next < len(ids) {
			res["uuid"] = []any{"uuid", ids[next]}
			next++
		}
		out = append(out, res)
	}
	return out
}
