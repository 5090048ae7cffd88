package ovsdb

import "context"

// TxnOptions controls failure reporting for a transaction commit.
type TxnOptions struct {
	// CheckError returns commit failures to the caller. Without it a
	// failure is only logged (when LogErrors is set) and Commit returns nil.
	CheckError bool
	LogErrors  bool
}

// DefaultTxnOptions reports and logs every failure.
func DefaultTxnOptions() TxnOptions {
	return TxnOptions{CheckError: true, LogErrors: true}
}

// Command is one database operation built by a backend.
type Command interface {
	// Execute runs the command in a transaction of its own.
	Execute(ctx context.Context) (any, error)
	// Result returns the value produced by the last commit, or nil.
	Result() any
}

// Transaction batches commands and commits them together.
type Transaction interface {
	Add(cmd Command) Command
	Commit(ctx context.Context) error
}

// Do adds cmds to txn and commits it.
func Do(ctx context.Context, txn Transaction, cmds ...Command) error {
	for _, cmd := range cmds {
		txn.Add(cmd)
	}
	return txn.Commit(ctx)
}

// ExternalID is a single external_ids key/value pair.
type ExternalID struct {
	Key   string
	Value string
}

// Columns maps column names onto values for insert/update style commands.
type Columns map[string]any
