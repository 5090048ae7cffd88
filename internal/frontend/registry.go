// Package frontend maps configured interface names to OVS and OVN
// backends.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/danmuck/ovsfront/internal/config"
	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/ovn"
	"github.com/danmuck/ovsfront/internal/ovn/monitor"
	"github.com/danmuck/ovsfront/internal/ovn/native"
	"github.com/danmuck/ovsfront/internal/ovn/nbctl"
	"github.com/danmuck/ovsfront/internal/ovs"
	"github.com/danmuck/ovsfront/internal/ovs/vsctl"
)

var (
	ErrUnknownInterface = errors.New("frontend: unknown interface")
	ErrInterfaceExists  = errors.New("frontend: interface already registered")
)

type OVSFactory func(cfg config.Config) (ovs.API, error)

// OVNFactory builds a northbound frontend. ports may be nil when the
// caller does not need port status events.
type OVNFactory func(ctx context.Context, cfg config.Config, ports monitor.PortStatusHandler) (*OVN, error)

// OVN is a northbound frontend. Reader is nil for backends that cannot
// query the database and Monitor is nil when no connection is held.
type OVN struct {
	API     ovn.API
	Reader  ovn.Reader
	Monitor *monitor.Connection
}

func (o *OVN) Close() {
	if o.Monitor != nil {
		o.Monitor.Close()
	}
}

// Registry stores backend factories by interface name.
type Registry struct {
	mu  sync.RWMutex
	ovs map[string]OVSFactory
	ovn map[string]OVNFactory

	dial native.Dialer
}

// NewRegistry returns a registry holding the built-in backends.
func NewRegistry() *Registry {
	r := &Registry{
		ovs:  make(map[string]OVSFactory),
		ovn:  make(map[string]OVNFactory),
		dial: native.DialJSONRPC,
	}
	r.ovs[config.OVSInterfaceVsctl] = newVsctl
	r.ovn[config.OVNInterfaceNbctl] = r.newNbctl
	r.ovn[config.OVNInterfaceNative] = r.newNative
	return r
}

func (r *Registry) RegisterOVS(name string, f OVSFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ovs[name]; ok {
		return fmt.Errorf("%w: ovs %s", ErrInterfaceExists, name)
	}
	r.ovs[name] = f
	return nil
}

func (r *Registry) RegisterOVN(name string, f OVNFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ovn[name]; ok {
		return fmt.Errorf("%w: ovn %s", ErrInterfaceExists, name)
	}
	r.ovn[name] = f
	return nil
}

// OVSInterfaces lists registered OVS interface names in sorted order.
func (r *Registry) OVSInterfaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.ovs)
}

func (r *Registry) OVNInterfaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.ovn)
}

func (r *Registry) NewOVS(cfg config.Config) (ovs.API, error) {
	r.mu.RLock()
	f, ok := r.ovs[cfg.OVS.Interface]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: ovs %q", ErrUnknownInterface, cfg.OVS.Interface)
	}
	return f(cfg)
}

func (r *Registry) NewOVN(ctx context.Context, cfg config.Config, ports monitor.PortStatusHandler) (*OVN, error) {
	r.mu.RLock()
	f, ok := r.ovn[cfg.OVN.Interface]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: ovn %q", ErrUnknownInterface, cfg.OVN.Interface)
	}
	return f(ctx, cfg, ports)
}

var defaultRegistry = NewRegistry()

func NewOVS(cfg config.Config) (ovs.API, error) {
	return defaultRegistry.NewOVS(cfg)
}

func NewOVN(ctx context.Context, cfg config.Config, ports monitor.PortStatusHandler) (*OVN, error) {
	return defaultRegistry.NewOVN(ctx, cfg, ports)
}

func newVsctl(cfg config.Config) (ovs.API, error) {
	return vsctl.New(vsctl.Config{
		Database: cfg.OVS.Connection,
		Timeout:  cfg.OVS.VsctlTimeout,
		Runner:   cfg.Exec.Runner(),
	}), nil
}

// newNbctl only connects to the database when port events are wanted;
// commands go through ovn-nbctl either way.
func (r *Registry) newNbctl(ctx context.Context, cfg config.Config, ports monitor.PortStatusHandler) (*OVN, error) {
	out := &OVN{API: nbctl.New(nbctl.Config{
		Database: cfg.OVN.Database,
		Timeout:  cfg.OVS.VsctlTimeout,
		Runner:   cfg.Exec.Runner(),
	})}
	if ports == nil {
		return out, nil
	}
	mon, err := r.startMonitor(ctx, cfg, ports)
	if err != nil {
		return nil, err
	}
	out.Monitor = mon
	return out, nil
}

func (r *Registry) newNative(ctx context.Context, cfg config.Config, ports monitor.PortStatusHandler) (*OVN, error) {
	if ports == nil {
		ports = discardPorts{}
	}
	mon, err := r.startMonitor(ctx, cfg, ports)
	if err != nil {
		return nil, err
	}
	api := native.New(mon.Native(), cfg.OVN.ConnectionTimeout)
	return &OVN{API: api, Reader: api, Monitor: mon}, nil
}

func (r *Registry) startMonitor(ctx context.Context, cfg config.Config, ports monitor.PortStatusHandler) (*monitor.Connection, error) {
	mon := monitor.NewConnection(native.ConnectionConfig{
		Endpoint: cfg.OVN.Connection,
		Database: ovn.Database,
		Timeout:  cfg.OVN.ConnectionTimeout,
		Tables:   ovn.Tables,
		Dial:     r.dial,
		Runner:   cfg.Exec.Runner(),
	}, cfg.OVN.EventLock, ports)
	if err := mon.Start(ctx); err != nil {
		mon.Close()
		return nil, fmt.Errorf("frontend: start ovn connection %s: %w", cfg.OVN.Connection, err)
	}
	logging.Infof("frontend.Registry.startMonitor ready endpoint=%s interface=%s", cfg.OVN.Connection, cfg.OVN.Interface)
	return mon, nil
}

type discardPorts struct{}

func (discardPorts) SetPortStatusUp(string)   {}
func (discardPorts) SetPortStatusDown(string) {}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
