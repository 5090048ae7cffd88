package idl

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/danmuck/ovsfront/internal/ovsdb"
)

var ErrTxnFailed = errors.New("idl: transaction failed")

// Operation is one element of a transact request.
type Operation struct {
	Op       string           `json:"op"`
	Table    string           `json:"table,omitempty"`
	Where    [][]any          `json:"where,omitempty"`
	Row      map[string]any   `json:"row,omitempty"`
	UUIDName string           `json:"uuid-name,omitempty"`
	Columns  []string         `json:"columns,omitempty"`
	Until    string           `json:"until,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
	Timeout  *int             `json:"timeout,omitempty"`
	Comment  string           `json:"comment,omitempty"`
}

// OperationResult is the server reply to one Operation. Error is set when
// the operation failed.
type OperationResult struct {
	Count   int    `json:"count,omitempty"`
	UUID    []any  `json:"uuid,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// RPC is the subset of a JSON-RPC client Transact needs.
type RPC interface {
	Call(ctx context.Context, method string, params []any, result any) error
}

// TxnResult maps the uuid-names of inserted rows onto the uuids the
// server assigned.
type TxnResult struct {
	Inserted map[string]uuid.UUID
}

// UUID returns the committed uuid for row, which may be a staged insert.
func (r *TxnResult) UUID(row *Row) (uuid.UUID, bool) {
	if r == nil || row == nil {
		return uuid.Nil, false
	}
	if id, ok := r.Inserted[row.UUID]; ok {
		return id, true
	}
	id, err := uuid.Parse(row.UUID)
	return id, err == nil
}

// Commit sends the staged operations. An empty transaction is a no-op.
func (t *Txn) Commit(ctx context.Context, rpc RPC, db string) (*TxnResult, error) {
	return Transact(ctx, rpc, db, t.Operations())
}

// Transact runs ops against db. A failed wait operation means a verified
// column changed underneath the transaction and yields ovsdb.ErrTryAgain.
func Transact(ctx context.Context, rpc RPC, db string, ops []Operation) (*TxnResult, error) {
	res := &TxnResult{Inserted: map[string]uuid.UUID{}}
	if len(ops) == 0 {
		return res, nil
	}
	params := make([]any, 0, len(ops)+1)
	params = append(params, db)
	for _, op := range ops {
		params = append(params, op)
	}

	var results []*OperationResult
	if err := rpc.Call(ctx, "transact", params, &results); err != nil {
		return nil, err
	}

	for i, r := range results {
		if r == nil || r.Error == "" {
			continue
		}
		if i < len(ops) && ops[i].Op == "wait" && r.Error == "timed out" {
			return nil, fmt.Errorf("%w: %s %s changed", ovsdb.ErrTryAgain, ops[i].Table, ops[i].Columns)
		}
		if i < len(ops) {
			return nil, fmt.Errorf("%w: %s on %s: %s: %s", ErrTxnFailed, ops[i].Op, ops[i].Table, r.Error, r.Details)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrTxnFailed, r.Error, r.Details)
	}
	if len(results) < len(ops) {
		return nil, fmt.Errorf("%w: %d results for %d operations", ErrTxnFailed, len(results), len(ops))
	}

	for i, op := range ops {
		if op.Op != "insert" || op.UUIDName == "" || results[i] == nil {
			continue
		}
		if len(results[i].UUID) != 2 {
			continue
		}
		if s, ok := results[i].UUID[1].(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				res.Inserted[op.UUIDName] = id
			}
		}
	}
	return res, nil
}
