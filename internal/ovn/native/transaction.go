// Package native implements the OVN northbound API directly over the
// OVSDB protocol, using a monitored replica for reads.
package native

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/observability"
	"github.com/danmuck/ovsfront/internal/ovsdb"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
)

const backendLabel = "native"

// Backend supplies the replica and the RPC channel commands commit
// through. *Connection implements it.
type Backend interface {
	Replica() *idl.Replica
	RPC() idl.RPC
	Database() string
}

type Transaction struct {
	api      *API
	opts     ovsdb.TxnOptions
	commands []*Command
	err      error
}

func (t *Transaction) Add(cmd ovsdb.Command) ovsdb.Command {
	c, ok := cmd.(*Command)
	if !ok {
		t.err = fmt.Errorf("%w: %T", ovsdb.ErrForeignCommand, cmd)
		return cmd
	}
	t.commands = append(t.commands, c)
	return cmd
}

func (t *Transaction) Commit(ctx context.Context) error {
	start := time.Now()
	err := t.commit(ctx)
	observability.RecordTransaction(backendLabel, len(t.commands), time.Since(start), err)
	if err == nil {
		return nil
	}
	if t.opts.LogErrors {
		logging.Errorf("native.Transaction.Commit failed commands=%d err=%v", len(t.commands), err)
	}
	if !t.opts.CheckError {
		return nil
	}
	return err
}

// commit re-runs every command against a fresh Txn until the server
// accepts it. A verify conflict waits for the replica to catch up first.
func (t *Transaction) commit(ctx context.Context) error {
	if t.err != nil {
		return t.err
	}
	if len(t.commands) == 0 {
		return nil
	}
	replica := t.api.backend.Replica()
	rpc := t.api.backend.RPC()
	if replica == nil || rpc == nil {
		return ErrNotStarted
	}

	ctx, cancel := context.WithTimeout(ctx, t.api.timeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		seq := replica.Seqno()
		txn := idl.NewTxn(replica)
		for _, cmd := range t.commands {
			cmd.reset()
			if err := cmd.run(txn, cmd); err != nil {
				return err
			}
		}

		res, err := txn.Commit(ctx, rpc, t.api.backend.Database())
		if errors.Is(err, ovsdb.ErrTryAgain) {
			observability.RecordTransactionRetry(backendLabel)
			logging.Debugf("native.Transaction.commit try_again attempt=%d err=%v", attempt, err)
			if werr := replica.WaitForChange(ctx, seq); werr != nil {
				return fmt.Errorf("native: transaction not committed after %d attempts: %w", attempt, werr)
			}
			continue
		}
		if err != nil {
			return err
		}
		for _, cmd := range t.commands {
			cmd.committed(res)
		}
		return nil
	}
}
