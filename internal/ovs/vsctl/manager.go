package vsctl

import (
	"context"
	"fmt"
	"strings"

	"github.com/danmuck/ovsfront/internal/tools"
)

// ManagerURI converts an active connection string into the passive form
// ovsdb-server listens on: tcp:127.0.0.1:6640 becomes ptcp:6640:127.0.0.1.
func ManagerURI(conn string) (string, error) {
	proto, addr, ok := strings.Cut(conn, ":")
	if !ok || proto == "" || addr == "" {
		return "", fmt.Errorf("vsctl: invalid connection %q", conn)
	}
	if ip, port, ok := strings.Cut(addr, ":"); ok {
		return fmt.Sprintf("p%s:%s:%s", proto, port, ip), nil
	}
	return fmt.Sprintf("p%s:%s", proto, addr), nil
}

// EnableConnectionURI asks the local ovsdb-server to listen on conn.
func EnableConnectionURI(ctx context.Context, runner tools.CommandRunner, conn string) error {
	uri, err := ManagerURI(conn)
	if err != nil {
		return err
	}
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	_, err = tools.Execute(ctx, runner, Binary, "set-manager", uri)
	return err
}
