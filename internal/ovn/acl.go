package ovn

import (
	"errors"
	"fmt"
	"maps"

	"github.com/danmuck/ovsfront/internal/ovsdb"
)

var ErrInvalidACL = errors.New("ovn: invalid acl")

const (
	MaxACLPriority = 65535

	DirectionFromLPort = "from-lport"
	DirectionToLPort   = "to-lport"

	ActionAllow        = "allow"
	ActionAllowRelated = "allow-related"
	ActionDrop         = "drop"
	ActionReject       = "reject"
)

// ACL is one access control rule of a logical switch.
type ACL struct {
	Priority    int               `json:"priority"`
	Direction   string            `json:"direction"`
	Match       string            `json:"match"`
	Action      string            `json:"action"`
	Log         bool              `json:"log"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
}

func (a ACL) Validate() error {
	if a.Priority < 0 || a.Priority > MaxACLPriority {
		return fmt.Errorf("%w: priority %d outside 0..%d", ErrInvalidACL, a.Priority, MaxACLPriority)
	}
	switch a.Action {
	case ActionAllow, ActionAllowRelated, ActionDrop, ActionReject:
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidACL, a.Action)
	}
	switch a.Direction {
	case DirectionFromLPort, DirectionToLPort:
	default:
		return fmt.Errorf("%w: direction %q", ErrInvalidACL, a.Direction)
	}
	if a.Match == "" {
		return fmt.Errorf("%w: empty match", ErrInvalidACL)
	}
	return nil
}

// Columns renders the rule as ACL table columns.
func (a ACL) Columns() ovsdb.Columns {
	ext := make(map[string]string, len(a.ExternalIDs))
	maps.Copy(ext, a.ExternalIDs)
	return ovsdb.Columns{
		"priority":     int64(a.Priority),
		"direction":    a.Direction,
		"match":        a.Match,
		"action":       a.Action,
		"log":          a.Log,
		"external_ids": ext,
	}
}

// WithLPort returns a copy tagged with the owning logical port.
func (a ACL) WithLPort(lport string) ACL {
	ext := make(map[string]string, len(a.ExternalIDs)+1)
	maps.Copy(ext, a.ExternalIDs)
	ext[ExtIDLPort] = lport
	a.ExternalIDs = ext
	return a
}
