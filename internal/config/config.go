// Package config loads the ovsfront TOML configuration.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("config: invalid")

const (
	OVSInterfaceVsctl  = "vsctl"
	OVNInterfaceNative = "native"
	OVNInterfaceNbctl  = "nbctl"

	DefaultOVSConnection = "tcp:127.0.0.1:6640"
	DefaultOVNConnection = "tcp:127.0.0.1:6641"
	DefaultEventLock     = "ovn_event_lock"
	DefaultHTTPAddr      = ":9400"
)

type Config struct {
	OVS  OVSConfig
	OVN  OVNConfig
	Exec ExecConfig
	HTTP HTTPConfig
}

type OVSConfig struct {
	Interface    string
	Connection   string
	VsctlTimeout time.Duration
}

type OVNConfig struct {
	Interface         string
	Connection        string
	ConnectionTimeout time.Duration
	// Database is the ovn-nbctl -d target; empty uses the tool default.
	Database  string
	EventLock string
}

// ExecConfig selects where ctl tools run. A set SSHHost runs them on that
// host instead of locally.
type ExecConfig struct {
	RootHelper    []string
	SSHHost       string
	SSHUser       string
	SSHKey        string
	SSHKnownHosts string
}

type HTTPConfig struct {
	Addr        string
	CorsOrigins []string
	// AuthToken, when set, is required as a bearer token on /ports.
	AuthToken string
}

func Default() Config {
	return Config{
		OVS: OVSConfig{
			Interface:    OVSInterfaceVsctl,
			Connection:   DefaultOVSConnection,
			VsctlTimeout: 10 * time.Second,
		},
		OVN: OVNConfig{
			Interface:         OVNInterfaceNative,
			Connection:        DefaultOVNConnection,
			ConnectionTimeout: 60 * time.Second,
			EventLock:         DefaultEventLock,
		},
		HTTP: HTTPConfig{
			Addr:        DefaultHTTPAddr,
			CorsOrigins: []string{},
		},
	}
}

type fileConfig struct {
	OVS  ovsFile  `toml:"ovs"`
	OVN  ovnFile  `toml:"ovn"`
	Exec execFile `toml:"exec"`
	HTTP httpFile `toml:"http"`
}

type ovsFile struct {
	Interface    string `toml:"ovsdb_interface"`
	Connection   string `toml:"ovsdb_connection"`
	VsctlTimeout string `toml:"vsctl_timeout"`
}

type ovnFile struct {
	Interface         string `toml:"ovndb_interface"`
	Connection        string `toml:"ovsdb_connection"`
	ConnectionTimeout string `toml:"ovsdb_connection_timeout"`
	Database          string `toml:"database,omitempty"`
	EventLock         string `toml:"event_lock"`
}

type execFile struct {
	RootHelper    []string `toml:"root_helper"`
	SSHHost       string   `toml:"ssh_host,omitempty"`
	SSHUser       string   `toml:"ssh_user,omitempty"`
	SSHKey        string   `toml:"ssh_key,omitempty"`
	SSHKnownHosts string   `toml:"ssh_known_hosts,omitempty"`
}

type httpFile struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token,omitempty"`
}

// Load reads path over Default and validates the result. Only keys present
// in the file override defaults.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg, err := apply(Default(), raw, meta)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func apply(cfg Config, raw fileConfig, meta toml.MetaData) (Config, error) {
	var err error
	if meta.IsDefined("ovs", "ovsdb_interface") {
		cfg.OVS.Interface = strings.TrimSpace(raw.OVS.Interface)
	}
	if meta.IsDefined("ovs", "ovsdb_connection") {
		cfg.OVS.Connection = strings.TrimSpace(raw.OVS.Connection)
	}
	if meta.IsDefined("ovs", "vsctl_timeout") {
		if cfg.OVS.VsctlTimeout, err = parseDuration("ovs.vsctl_timeout", raw.OVS.VsctlTimeout); err != nil {
			return Config{}, err
		}
	}

	if meta.IsDefined("ovn", "ovndb_interface") {
		cfg.OVN.Interface = strings.TrimSpace(raw.OVN.Interface)
	}
	if meta.IsDefined("ovn", "ovsdb_connection") {
		cfg.OVN.Connection = strings.TrimSpace(raw.OVN.Connection)
	}
	if meta.IsDefined("ovn", "ovsdb_connection_timeout") {
		if cfg.OVN.ConnectionTimeout, err = parseDuration("ovn.ovsdb_connection_timeout", raw.OVN.ConnectionTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("ovn", "database") {
		cfg.OVN.Database = strings.TrimSpace(raw.OVN.Database)
	}
	if meta.IsDefined("ovn", "event_lock") {
		cfg.OVN.EventLock = strings.TrimSpace(raw.OVN.EventLock)
	}

	if meta.IsDefined("exec", "root_helper") {
		cfg.Exec.RootHelper = normalizeList(raw.Exec.RootHelper)
	}
	if meta.IsDefined("exec", "ssh_host") {
		cfg.Exec.SSHHost = strings.TrimSpace(raw.Exec.SSHHost)
	}
	if meta.IsDefined("exec", "ssh_user") {
		cfg.Exec.SSHUser = strings.TrimSpace(raw.Exec.SSHUser)
	}
	if meta.IsDefined("exec", "ssh_key") {
		cfg.Exec.SSHKey = strings.TrimSpace(raw.Exec.SSHKey)
	}
	if meta.IsDefined("exec", "ssh_known_hosts") {
		cfg.Exec.SSHKnownHosts = strings.TrimSpace(raw.Exec.SSHKnownHosts)
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CorsOrigins = normalizeList(raw.HTTP.CorsOrigins)
	}
	if meta.IsDefined("http", "auth_token") {
		cfg.HTTP.AuthToken = strings.TrimSpace(raw.HTTP.AuthToken)
	}
	return cfg, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.OVS.Interface != OVSInterfaceVsctl {
		return fmt.Errorf("%w: ovs.ovsdb_interface %q (want %s)", ErrInvalidConfig, c.OVS.Interface, OVSInterfaceVsctl)
	}
	if !slices.Contains([]string{OVNInterfaceNative, OVNInterfaceNbctl}, c.OVN.Interface) {
		return fmt.Errorf("%w: ovn.ovndb_interface %q (want %s or %s)", ErrInvalidConfig, c.OVN.Interface, OVNInterfaceNative, OVNInterfaceNbctl)
	}
	if c.OVS.Connection == "" {
		return fmt.Errorf("%w: ovs.ovsdb_connection is required", ErrInvalidConfig)
	}
	if c.OVN.Connection == "" {
		return fmt.Errorf("%w: ovn.ovsdb_connection is required", ErrInvalidConfig)
	}
	if c.OVS.VsctlTimeout <= 0 {
		return fmt.Errorf("%w: ovs.vsctl_timeout must be positive", ErrInvalidConfig)
	}
	if c.OVN.ConnectionTimeout <= 0 {
		return fmt.Errorf("%w: ovn.ovsdb_connection_timeout must be positive", ErrInvalidConfig)
	}
	if c.OVN.EventLock == "" {
		return fmt.Errorf("%w: ovn.event_lock is required", ErrInvalidConfig)
	}
	if c.Exec.SSHHost != "" && c.Exec.SSHUser == "" {
		return fmt.Errorf("%w: exec.ssh_user required with ssh_host", ErrInvalidConfig)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is required", ErrInvalidConfig)
	}
	return nil
}
