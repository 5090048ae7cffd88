package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danmuck/ovsfront/internal/testutil/testlog"
	"github.com/danmuck/ovsfront/internal/tools"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ovsfront.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[ovs]
ovsdb_connection = "unix:/var/run/openvswitch/db.sock"
vsctl_timeout = "3s"

[ovn]
ovndb_interface = "nbctl"
ovsdb_connection_timeout = "5s"
database = "unix:/var/run/ovn/ovnnb_db.sock"

[exec]
root_helper = ["sudo", " ", "-n"]
ssh_host = "hv1"
ssh_user = "ops"

[http]
addr = "127.0.0.1:9401"
cors_origins = ["http://localhost:3000"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	want.OVS.Connection = "unix:/var/run/openvswitch/db.sock"
	want.OVS.VsctlTimeout = 3 * time.Second
	want.OVN.Interface = OVNInterfaceNbctl
	want.OVN.ConnectionTimeout = 5 * time.Second
	want.OVN.Database = "unix:/var/run/ovn/ovnnb_db.sock"
	want.Exec = ExecConfig{RootHelper: []string{"sudo", "-n"}, SSHHost: "hv1", SSHUser: "ops"}
	want.HTTP = HTTPConfig{Addr: "127.0.0.1:9401", CorsOrigins: []string{"http://localhost:3000"}}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	tests := map[string]string{
		"bad duration":     "[ovs]\nvsctl_timeout = \"soon\"\n",
		"native ovs":       "[ovs]\novsdb_interface = \"native\"\n",
		"unknown ovn":      "[ovn]\novndb_interface = \"idl\"\n",
		"empty lock":       "[ovn]\nevent_lock = \"\"\n",
		"ssh without user": "[exec]\nssh_host = \"hv1\"\n",
		"negative timeout": "[ovn]\novsdb_connection_timeout = \"-1s\"\n",
		"empty http addr":  "[http]\naddr = \" \"\n",
		"empty connection": "[ovs]\novsdb_connection = \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWriteTemplateLoadsAsDefault(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "ovsfront.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("template config (-want +got):\n%s", diff)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected existing config to be kept")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
}

func TestExecRunnerSelection(t *testing.T) {
	testlog.Start(t)
	local := ExecConfig{RootHelper: []string{"sudo"}}.Runner()
	if r, ok := local.(tools.ExecRunner); !ok || len(r.RootHelper) != 1 {
		t.Fatalf("expected local exec runner, got %#v", local)
	}
	remote := ExecConfig{SSHHost: "hv1", SSHUser: "ops", SSHKey: "/k"}.Runner()
	r, ok := remote.(tools.SSHRunner)
	if !ok {
		t.Fatalf("expected ssh runner, got %#v", remote)
	}
	if r.Host != "hv1" || r.User != "ops" || r.KeyPath != "/k" {
		t.Fatalf("unexpected ssh runner: %+v", r)
	}
}
