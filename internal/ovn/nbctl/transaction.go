// Package nbctl implements the OVN northbound API on top of ovn-nbctl.
// Every command of a transaction is chained into one ovn-nbctl
// invocation, so the batch commits or fails as a whole.
package nbctl

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/observability"
	"github.com/danmuck/ovsfront/internal/ovsdb"
	"github.com/danmuck/ovsfront/internal/tools"
)

const (
	Binary         = "ovn-nbctl"
	DefaultTimeout = 10 * time.Second
	backendLabel   = "nbctl"
)

type Config struct {
	// Database is passed as -d when set.
	Database string
	Timeout  time.Duration
	Runner   tools.CommandRunner
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Runner == nil {
		c.Runner = tools.ExecRunner{}
	}
	return c
}

type Transaction struct {
	cfg      Config
	opts     ovsdb.TxnOptions
	commands []*Command
	err      error
}

func newTransaction(cfg Config, opts ovsdb.TxnOptions) *Transaction {
	return &Transaction{cfg: cfg, opts: opts}
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

// Args renders the ovn-nbctl argv (without the binary). A row symbol
// declared by more than one command gets a numeric suffix from its second
// use on, since ovn-nbctl allows each --id once per invocation.
func (t *Transaction) Args() []string {
	var args []string
	if t.cfg.Database != "" {
		args = append(args, "-d", t.cfg.Database)
	}
	uses := map[string]int{}
	for _, cmd := range t.commands {
		var rename map[string]string
		for _, id := range cmd.ids {
			uses[id]++
			if n := uses[id]; n > 1 {
				if rename == nil {
					rename = map[string]string{}
				}
				rename[id] = id + strconv.Itoa(n)
			}
		}
		args = append(args, cmd.renderArgs(rename)...)
	}
	return args
}

func (t *Transaction) Commit(ctx context.Context) error {
	start := time.Now()
	err := t.commit(ctx)
	observability.RecordTransaction(backendLabel, len(t.commands), time.Since(start), err)
	if err == nil {
		return nil
	}
	if t.opts.LogErrors {
		logging.Errorf("nbctl.Transaction.Commit failed args=%q err=%v", t.Args(), err)
	}
	if !t.opts.CheckError {
		return nil
	}
	return err
}

func (t *Transaction) commit(ctx context.Context) error {
	if t.err != nil {
		return t.err
	}
	segments := 0
	for _, cmd := range t.commands {
		cmd.result = nil
		segments += len(cmd.segments)
	}
	if segments == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()
	out, err := tools.Execute(ctx, t.cfg.Runner, Binary, t.Args()...)
	if err != nil {
		return err
	}
	out = strings.TrimRight(out, "\n")
	for _, cmd := range t.commands {
		cmd.result = out
	}
	return nil
}
