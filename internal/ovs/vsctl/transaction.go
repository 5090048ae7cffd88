// Package vsctl implements the Open_vSwitch API on top of the ovs-vsctl
// binary. All commands of one transaction run in a single ovs-vsctl
// invocation, which ovs-vsctl applies atomically.
package vsctl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/observability"
	"github.com/danmuck/ovsfront/internal/ovsdb"
	"github.com/danmuck/ovsfront/internal/tools"
)

const (
	Binary         = "ovs-vsctl"
	DefaultTimeout = 10 * time.Second
	backendLabel   = "vsctl"
)

// Config carries the execution context shared by all commands of an API.
type Config struct {
	// Database is passed as --db when set, e.g. tcp:127.0.0.1:6640.
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

// Transaction collects commands for one ovs-vsctl run.
type Transaction struct {
	cfg      Config
	opts     ovsdb.TxnOptions
	commands []command
	err      error
}

func newTransaction(cfg Config, opts ovsdb.TxnOptions) *Transaction {
	return &Transaction{cfg: cfg, opts: opts}
}

func (t *Transaction) Add(cmd ovsdb.Command) ovsdb.Command {
	c, ok := cmd.(command)
	if !ok {
		t.err = fmt.Errorf("%w: %T", ovsdb.ErrForeignCommand, cmd)
		return cmd
	}
	t.commands = append(t.commands, c)
	return cmd
}

func (t *Transaction) globalOpts() []string {
	opts := []string{
		fmt.Sprintf("--timeout=%d", int(t.cfg.Timeout/time.Second)),
		"--oneline",
		"--format=json",
	}
	if t.cfg.Database != "" {
		opts = append(opts, "--db="+t.cfg.Database)
	}
	return opts
}

// Args renders the full ovs-vsctl argv (without the binary) for the
// commands added so far.
func (t *Transaction) Args() []string {
	args := t.globalOpts()
	for _, cmd := range t.commands {
		args = append(args, cmd.vsctlArgs()...)
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
		logging.Errorf("vsctl.Transaction.Commit failed args=%q err=%v", t.Args(), err)
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
	for _, cmd := range t.commands {
		cmd.setResult("")
	}
	if len(t.commands) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout+time.Second)
	defer cancel()
	out, err := tools.Execute(ctx, t.cfg.Runner, Binary, t.Args()...)
	if err != nil {
		return err
	}

	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(out, `\\`, `\`), "\n")
	for i, line := range lines {
		if i >= len(t.commands) {
			break
		}
		if err := t.commands[i].setResult(line); err != nil {
			return err
		}
	}
	return nil
}
