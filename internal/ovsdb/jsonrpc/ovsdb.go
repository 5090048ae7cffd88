package jsonrpc

import (
	"context"
	"encoding/json"
)

// ListDbs returns the databases served by the endpoint.
func (c *Client) ListDbs(ctx context.Context) ([]string, error) {
	var dbs []string
	if err := c.Call(ctx, "list_dbs", nil, &dbs); err != nil {
		return nil, err
	}
	return dbs, nil
}

// GetSchema returns the raw schema of db.
func (c *Client) GetSchema(ctx context.Context, db string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "get_schema", []any{db}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Monitor starts a monitor and returns the initial table-updates dump.
func (c *Client) Monitor(ctx context.Context, db string, monitorID any, requests map[string]any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "monitor", []any{db, monitorID, requests}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Lock requests the named lock. When it is contended the result is false
// and a locked notification arrives once it is granted.
func (c *Client) Lock(ctx context.Context, id string) (bool, error) {
	var res struct {
		Locked bool `json:"locked"`
	}
	if err := c.Call(ctx, "lock", []any{id}, &res); err != nil {
		return false, err
	}
	return res.Locked, nil
}

func (c *Client) Unlock(ctx context.Context, id string) error {
	return c.Call(ctx, "unlock", []any{id}, nil)
}

func (c *Client) Echo(ctx context.Context) error {
	return c.Call(ctx, "echo", []any{"ovsfront"}, nil)
}
