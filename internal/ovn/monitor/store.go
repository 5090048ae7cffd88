package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/ovsfront/internal/logging"
)

type PortStatus struct {
	Name    string    `json:"name"`
	Up      bool      `json:"up"`
	Changed time.Time `json:"changed"`
}

// PortStore remembers the last reported status of every logical port.
type PortStore struct {
	mu    sync.RWMutex
	ports map[string]PortStatus
	now   func() time.Time
}

var _ PortStatusHandler = (*PortStore)(nil)

func NewPortStore() *PortStore {
	return &PortStore{ports: make(map[string]PortStatus), now: time.Now}
}

func (s *PortStore) SetPortStatusUp(name string) {
	s.set(name, true)
}

func (s *PortStore) SetPortStatusDown(name string) {
	s.set(name, false)
}

func (s *PortStore) set(name string, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ports[name] = PortStatus{Name: name, Up: up, Changed: s.now()}
	logging.Infof("monitor.PortStore.set port=%s up=%v", name, up)
}

func (s *PortStore) Port(name string) (PortStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.ports[name]
	return p, ok
}

// Ports returns every known port ordered by name.
func (s *PortStore) Ports() []PortStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PortStatus, 0, len(s.ports))
	for _, p := range s.ports {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
