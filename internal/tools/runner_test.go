package tools

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/testutil/testlog"
)

type scriptedRunner struct {
	stdout string
	stderr string
	code   int32
	err    error
}

func (s scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	return []byte(s.stdout), []byte(s.stderr), s.code, s.err
}

func TestExecRunnerArgvWithRootHelper(t *testing.T) {
	testlog.Start(t)
	r := ExecRunner{RootHelper: []string{"sudo", " ", "-n"}}
	got := r.argv("ovs-vsctl", []string{"list-br"})
	want := []string{"sudo", "-n", "ovs-vsctl", "list-br"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected argv: got=%v want=%v", got, want)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	testlog.Start(t)
	_, _, code, err := ExecRunner{}.Run(context.Background(), "ovsfront-definitely-missing-binary")
	if err == nil {
		t.Fatalf("expected error for missing binary")
	}
	if code != ExitNotFound {
		t.Fatalf("expected exit code %d, got %d", ExitNotFound, code)
	}
}

func TestExecuteWrapsFailure(t *testing.T) {
	testlog.Start(t)
	cause := errors.New("exit status 1")
	_, err := Execute(context.Background(), scriptedRunner{stderr: "ovs-vsctl: no bridge named br0\n", code: 1, err: cause}, "ovs-vsctl", "br-to-vlan", "br0")

	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecError, got %T", err)
	}
	if execErr.ExitCode != 1 {
		t.Fatalf("unexpected exit code: %d", execErr.ExitCode)
	}
	if !strings.Contains(err.Error(), "no bridge named br0") {
		t.Fatalf("stderr missing from error: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
}

func TestExecuteSuccess(t *testing.T) {
	testlog.Start(t)
	out, err := Execute(context.Background(), scriptedRunner{stdout: "br-int\n"}, "ovs-vsctl", "list-br")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "br-int\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestJoinCommandEscaping(t *testing.T) {
	got := joinCommand("echo", []string{"a b", "quote'v"})
	want := "'echo' 'a b' 'quote'\"'\"'v'"
	if got != want {
		t.Fatalf("unexpected joined command\nwant: %s\ngot:  %s", want, got)
	}
	logging.Logf("runner/join-command: %s", got)
}

func TestSSHRunnerAddressValidation(t *testing.T) {
	r := SSHRunner{}
	if _, err := r.address(); err == nil {
		t.Fatalf("expected host validation error")
	}

	r.Host = "compute-a"
	addr, err := r.address()
	if err != nil {
		t.Fatalf("unexpected address error: %v", err)
	}
	if addr != "compute-a:22" {
		t.Fatalf("expected default ssh port, got %q", addr)
	}
	logging.Logf("runner/address: host=%s resolved=%s", r.Host, addr)
}

func TestSSHRunnerClientConfigValidation(t *testing.T) {
	r := SSHRunner{Host: "compute-a"}
	if _, err := r.clientConfig(); err == nil {
		t.Fatalf("expected missing user validation error")
	}
	logging.Logf("runner/client-config: missing user path validated")
}
