// Package monitor watches the OVN northbound database and reports logical
// port up/down transitions to a PortStatusHandler.
package monitor

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/danmuck/ovsfront/internal/ovn"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
)

// PortStatusHandler is told when a logical port comes up or goes down.
type PortStatusHandler interface {
	SetPortStatusUp(name string)
	SetPortStatusDown(name string)
}

// RowEvent selects row changes by event kind, table and column
// conditions, and runs an action for each match.
type RowEvent struct {
	Name          string
	Events        sets.Set[idl.Event]
	Table         string
	Conditions    []idl.Condition
	OldConditions []idl.Condition
	// OneTime events are unwatched after their first run.
	OneTime bool
	Run     func(event idl.Event, row, old *idl.Row)
}

// Matches reports whether the change selects e. Old conditions need an
// old row that carries every column they name; a partial old row never
// matches.
func (e *RowEvent) Matches(event idl.Event, row, old *idl.Row) bool {
	if !e.Events.Has(event) {
		return false
	}
	if row == nil || row.Table != e.Table {
		return false
	}
	if ok, err := idl.MatchAll(row, e.Conditions); err != nil || !ok {
		return false
	}
	if len(e.OldConditions) > 0 {
		if old == nil {
			return false
		}
		if ok, err := idl.MatchAll(old, e.OldConditions); err != nil || !ok {
			return false
		}
	}
	return true
}

const (
	EventLPortCreateUp   = "LogicalPortCreateUpEvent"
	EventLPortCreateDown = "LogicalPortCreateDownEvent"
	EventLPortUpdateUp   = "LogicalPortUpdateUpEvent"
	EventLPortUpdateDown = "LogicalPortUpdateDownEvent"
)

func upIs(v bool) []idl.Condition {
	return []idl.Condition{idl.Cond("up", "=", v)}
}

// NewLPortCreateUpEvent fires for ports already up when the initial dump
// arrives.
func NewLPortCreateUpEvent(h PortStatusHandler) *RowEvent {
	return &RowEvent{
		Name:       EventLPortCreateUp,
		Events:     sets.New(idl.EventCreate),
		Table:      ovn.TableLPort,
		Conditions: upIs(true),
		Run: func(_ idl.Event, row, _ *idl.Row) {
			h.SetPortStatusUp(row.String("name"))
		},
	}
}

// NewLPortCreateDownEvent fires for ports already down when the initial
// dump arrives.
func NewLPortCreateDownEvent(h PortStatusHandler) *RowEvent {
	return &RowEvent{
		Name:       EventLPortCreateDown,
		Events:     sets.New(idl.EventCreate),
		Table:      ovn.TableLPort,
		Conditions: upIs(false),
		Run: func(_ idl.Event, row, _ *idl.Row) {
			h.SetPortStatusDown(row.String("name"))
		},
	}
}

// NewLPortUpdateUpEvent fires when up goes from false to true.
func NewLPortUpdateUpEvent(h PortStatusHandler) *RowEvent {
	return &RowEvent{
		Name:          EventLPortUpdateUp,
		Events:        sets.New(idl.EventUpdate),
		Table:         ovn.TableLPort,
		Conditions:    upIs(true),
		OldConditions: upIs(false),
		Run: func(_ idl.Event, row, _ *idl.Row) {
			h.SetPortStatusUp(row.String("name"))
		},
	}
}

// NewLPortUpdateDownEvent fires when up goes from true to false.
func NewLPortUpdateDownEvent(h PortStatusHandler) *RowEvent {
	return &RowEvent{
		Name:          EventLPortUpdateDown,
		Events:        sets.New(idl.EventUpdate),
		Table:         ovn.TableLPort,
		Conditions:    upIs(false),
		OldConditions: upIs(true),
		Run: func(_ idl.Event, row, _ *idl.Row) {
			h.SetPortStatusDown(row.String("name"))
		},
	}
}
