package monitor

import (
	"sort"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/observability"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
)

type notification struct {
	match *RowEvent
	event idl.Event
	row   *idl.Row
	old   *idl.Row
	stop  bool
}

// NotifyHandler matches row changes against watched events and runs the
// matches, in order, on a single goroutine.
type NotifyHandler struct {
	mu      sync.Mutex
	watched sets.Set[*RowEvent]

	qmu   sync.Mutex
	queue []notification
	wake  chan struct{}

	shutdown sync.Once
	done     chan struct{}
}

func NewNotifyHandler() *NotifyHandler {
	h := &NotifyHandler{
		watched: sets.New[*RowEvent](),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *NotifyHandler) Watch(events ...*RowEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watched.Insert(events...)
}

// Unwatch is a no-op for events that are not watched.
func (h *NotifyHandler) Unwatch(events ...*RowEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.watched.Delete(events...)
}

// Watched lists the watched event names in sorted order.
func (h *NotifyHandler) Watched() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, h.watched.Len())
	for e := range h.watched {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// MatchingEvents returns the watched events the change selects, ordered by
// name.
func (h *NotifyHandler) MatchingEvents(event idl.Event, row, old *idl.Row) []*RowEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*RowEvent
	for e := range h.watched {
		if e.Matches(event, row, old) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Notify queues every matching event and reports how many matched. It
// never blocks on the event actions.
func (h *NotifyHandler) Notify(event idl.Event, row, old *idl.Row) int {
	matches := h.MatchingEvents(event, row, old)
	if len(matches) == 0 {
		return 0
	}
	h.qmu.Lock()
	for _, m := range matches {
		h.queue = append(h.queue, notification{match: m, event: event, row: row, old: old})
	}
	h.qmu.Unlock()
	h.signal()
	return len(matches)
}

func (h *NotifyHandler) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *NotifyHandler) loop() {
	defer close(h.done)
	for range h.wake {
		for {
			h.qmu.Lock()
			if len(h.queue) == 0 {
				h.qmu.Unlock()
				break
			}
			n := h.queue[0]
			h.queue = h.queue[1:]
			h.qmu.Unlock()

			if n.stop {
				return
			}
			h.run(n)
		}
	}
}

func (h *NotifyHandler) run(n notification) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("monitor.NotifyHandler.run panic event=%s err=%v", n.match.Name, r)
		}
	}()
	n.match.Run(n.event, n.row, n.old)
	observability.RecordMonitorEvent(n.row.Table, string(n.event), true)
	if n.match.OneTime {
		h.Unwatch(n.match)
	}
}

// Shutdown stops the loop once the notifications queued so far have run,
// and waits for it.
func (h *NotifyHandler) Shutdown() {
	h.shutdown.Do(func() {
		h.qmu.Lock()
		h.queue = append(h.queue, notification{stop: true})
		h.qmu.Unlock()
		h.signal()
	})
	<-h.done
}
