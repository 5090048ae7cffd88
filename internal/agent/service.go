// Package agent runs the ovsfront daemon: the northbound monitor that
// tracks logical port status and the HTTP server that reports it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/danmuck/ovsfront/internal/config"
	"github.com/danmuck/ovsfront/internal/frontend"
	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/ovn/monitor"
	"github.com/danmuck/ovsfront/internal/server"
)

var ErrNoMonitor = errors.New("agent: ovn frontend has no monitor connection")

type Service struct {
	cfg      config.Config
	registry *frontend.Registry
	ports    *monitor.PortStore
}

func NewService(cfg config.Config) *Service {
	return NewServiceWithRegistry(cfg, frontend.NewRegistry())
}

func NewServiceWithRegistry(cfg config.Config, registry *frontend.Registry) *Service {
	return &Service{cfg: cfg, registry: registry, ports: monitor.NewPortStore()}
}

func (s *Service) Ports() *monitor.PortStore {
	return s.ports
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

func (s *Service) RunContext(ctx context.Context) error {
	front, err := s.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer front.Close()
	return s.serve(ctx, front)
}

func (s *Service) bootstrap(ctx context.Context) (*frontend.OVN, error) {
	front, err := s.registry.NewOVN(ctx, s.cfg, s.ports)
	if err != nil {
		return nil, fmt.Errorf("agent: bootstrap: %w", err)
	}
	if front.Monitor == nil {
		front.Close()
		return nil, ErrNoMonitor
	}
	switches := 0
	if front.Reader != nil {
		switches = len(front.Reader.AllLogicalSwitchesExtIDs())
	}
	logging.Infof(
		"agent.Service.bootstrap ready interface=%s endpoint=%s lock=%s switches=%d ports=%d",
		s.cfg.OVN.Interface,
		s.cfg.OVN.Connection,
		s.cfg.OVN.EventLock,
		switches,
		len(s.ports.Ports()),
	)
	return front, nil
}

func (s *Service) serve(ctx context.Context, front *frontend.OVN) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return front.Monitor.Run(gctx)
	})
	g.Go(func() error {
		return server.New(s.cfg.HTTP, s.ports).Run(gctx)
	})
	err := g.Wait()
	logging.Infof("agent.Service.serve shutdown err=%v", err)
	return err
}
