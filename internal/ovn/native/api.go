package native

import (
	"fmt"
	"maps"
	"time"

	"github.com/danmuck/ovsfront/internal/ovn"
	"github.com/danmuck/ovsfront/internal/ovsdb"
	"github.com/danmuck/ovsfront/internal/ovsdb/idl"
)

type API struct {
	backend Backend
	timeout time.Duration
}

var (
	_ ovn.API    = (*API)(nil)
	_ ovn.Reader = (*API)(nil)
)

// New builds the API over backend. timeout bounds each commit including
// its retries; zero means DefaultTimeout.
func New(backend Backend, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &API{backend: backend, timeout: timeout}
}

func (a *API) Transaction(opts ovsdb.TxnOptions) ovsdb.Transaction {
	return &Transaction{api: a, opts: opts}
}

func lookup(txn *idl.Txn, table, name string) (*idl.Row, error) {
	return txn.RowByValue(table, "name", name)
}

func setColumns(txn *idl.Txn, row *idl.Row, cols ovsdb.Columns) {
	for _, cv := range ovsdb.ColumnsFromMap(cols) {
		txn.Set(row, cv.Column, cv.Value)
	}
}

// missing resolves a failed parent or target lookup: nil when ifExists
// allows it, the not-found error otherwise.
func missing(err error, ifExists bool) error {
	if ifExists {
		return nil
	}
	return err
}

func (a *API) insertNamed(txn *idl.Txn, cmd *Command, table, name string, cols ovsdb.Columns) *idl.Row {
	row := txn.Insert(table)
	txn.Set(row, "name", name)
	setColumns(txn, row, cols)
	cmd.inserted = row
	return row
}

func appendRef(txn *idl.Txn, parent *idl.Row, column string, child *idl.Row) {
	refs := append(ovsdb.Set{}, ovsdb.AsSet(parent.Get(column))...)
	txn.Set(parent, column, append(refs, child.Ref()))
	txn.Verify(parent, column)
}

// removeRef drops child from parent's reference set and reports whether
// it was present.
func removeRef(txn *idl.Txn, parent *idl.Row, column string, child *idl.Row) bool {
	refs := ovsdb.AsSet(parent.Get(column))
	kept := make(ovsdb.Set, 0, len(refs))
	found := false
	for _, ref := range refs {
		if idl.ValuesEqual(ref, child.Ref()) {
			found = true
			continue
		}
		kept = append(kept, ref)
	}
	if found {
		txn.Verify(parent, column)
		txn.Set(parent, column, kept)
	}
	return found
}

func rowsByExtID(txn *idl.Txn, table string, extID ovsdb.ExternalID) []*idl.Row {
	var out []*idl.Row
	for _, row := range txn.Rows(table) {
		if v, ok := row.StringMap("external_ids")[extID.Key]; ok && v == extID.Value {
			out = append(out, row)
		}
	}
	return out
}

func (a *API) CreateLSwitch(name string, mayExist bool, cols ovsdb.Columns) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, cmd *Command) error {
		if mayExist {
			if _, err := lookup(txn, ovn.TableLSwitch, name); err == nil {
				return nil
			}
		}
		a.insertNamed(txn, cmd, ovn.TableLSwitch, name, cols)
		return nil
	})
}

func (a *API) SetLSwitchExtID(name string, extID ovsdb.ExternalID, ifExists bool) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		row, err := lookup(txn, ovn.TableLSwitch, name)
		if err != nil {
			return missing(err, ifExists)
		}
		setExtID(txn, row, extID)
		return nil
	})
}

func setExtID(txn *idl.Txn, row *idl.Row, extID ovsdb.ExternalID) {
	ext := row.StringMap("external_ids")
	ext[extID.Key] = extID.Value
	txn.Set(row, "external_ids", ext)
}

func (a *API) DeleteLSwitch(name string, ifExists bool) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		row, err := lookup(txn, ovn.TableLSwitch, name)
		if err != nil {
			return missing(err, ifExists)
		}
		txn.Delete(row)
		return nil
	})
}

func (a *API) DeleteLSwitchByExtID(extID ovsdb.ExternalID, ifExists bool) (ovsdb.Command, error) {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		rows := rowsByExtID(txn, ovn.TableLSwitch, extID)
		if len(rows) == 0 {
			return missing(ovsdb.RowNotFound(ovn.TableLSwitch, "external_ids:"+extID.Key, extID.Value), ifExists)
		}
		for _, row := range rows {
			txn.Delete(row)
		}
		return nil
	}), nil
}

func (a *API) CreateLPort(name, lswitch string, mayExist bool, cols ovsdb.Columns) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, cmd *Command) error {
		sw, err := lookup(txn, ovn.TableLSwitch, lswitch)
		if err != nil {
			return err
		}
		if mayExist {
			if _, err := lookup(txn, ovn.TableLPort, name); err == nil {
				return nil
			}
		}
		port := a.insertNamed(txn, cmd, ovn.TableLPort, name, cols)
		appendRef(txn, sw, "ports", port)
		return nil
	})
}

func (a *API) SetLPort(name string, ifExists bool, cols ovsdb.Columns) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		row, err := lookup(txn, ovn.TableLPort, name)
		if err != nil {
			return missing(err, ifExists)
		}
		setColumns(txn, row, cols)
		return nil
	})
}

func (a *API) SetLPortExtID(name string, extID ovsdb.ExternalID) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		row, err := lookup(txn, ovn.TableLPort, name)
		if err != nil {
			return err
		}
		setExtID(txn, row, extID)
		return nil
	})
}

func (a *API) SetLPortMAC(name string, macs ...string) ovsdb.Command {
	return a.SetLPort(name, false, ovsdb.Columns{"addresses": append([]string{}, macs...)})
}

func (a *API) SetLPortUpStatus(name string, up bool) ovsdb.Command {
	return a.SetLPort(name, false, ovsdb.Columns{"up": up})
}

// DeleteLPort removes the port from lswitch, or from whichever switch
// holds it when lswitch is empty.
func (a *API) DeleteLPort(name, lswitch string, ifExists bool) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		port, err := lookup(txn, ovn.TableLPort, name)
		if err != nil {
			return missing(err, ifExists)
		}
		if lswitch == "" {
			detachPort(txn, port)
		} else {
			sw, err := lookup(txn, ovn.TableLSwitch, lswitch)
			if err != nil {
				return missing(err, ifExists)
			}
			removeRef(txn, sw, "ports", port)
		}
		txn.Delete(port)
		return nil
	})
}

func detachPort(txn *idl.Txn, port *idl.Row) {
	for _, sw := range txn.Rows(ovn.TableLSwitch) {
		removeRef(txn, sw, "ports", port)
	}
}

func (a *API) DeleteLPortByExtID(extID ovsdb.ExternalID, ifExists bool) (ovsdb.Command, error) {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		ports := rowsByExtID(txn, ovn.TableLPort, extID)
		if len(ports) == 0 {
			return missing(ovsdb.RowNotFound(ovn.TableLPort, "external_ids:"+extID.Key, extID.Value), ifExists)
		}
		for _, port := range ports {
			detachPort(txn, port)
			txn.Delete(port)
		}
		return nil
	}), nil
}

func (a *API) CreateACLRule(lswitch string, rule ovn.ACL) (ovsdb.Command, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return a.newCommand(func(txn *idl.Txn, cmd *Command) error {
		sw, err := lookup(txn, ovn.TableLSwitch, lswitch)
		if err != nil {
			return err
		}
		acl := txn.Insert(ovn.TableACL)
		setColumns(txn, acl, rule.Columns())
		cmd.inserted = acl
		appendRef(txn, sw, "acls", acl)
		return nil
	}), nil
}

func (a *API) AddACL(lswitch, lport string, rule ovn.ACL) (ovsdb.Command, error) {
	return a.CreateACLRule(lswitch, rule.WithLPort(lport))
}

// DeleteACL removes every ACL of lswitch tagged with lport.
func (a *API) DeleteACL(lswitch, lport string, ifExists bool) (ovsdb.Command, error) {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		sw, err := lookup(txn, ovn.TableLSwitch, lswitch)
		if err != nil {
			return missing(err, ifExists)
		}
		for _, id := range sw.Refs("acls") {
			acl, ok := txn.Get(ovn.TableACL, id)
			if !ok || acl.StringMap("external_ids")[ovn.ExtIDLPort] != lport {
				continue
			}
			removeRef(txn, sw, "acls", acl)
			txn.Delete(acl)
		}
		return nil
	}), nil
}

func (a *API) CreateLRouter(name string, mayExist bool, cols ovsdb.Columns) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, cmd *Command) error {
		if mayExist {
			if _, err := lookup(txn, ovn.TableLRouter, name); err == nil {
				return nil
			}
		}
		a.insertNamed(txn, cmd, ovn.TableLRouter, name, cols)
		return nil
	})
}

func (a *API) UpdateLRouter(name string, ifExists bool, cols ovsdb.Columns) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		row, err := lookup(txn, ovn.TableLRouter, name)
		if err != nil {
			return missing(err, ifExists)
		}
		setColumns(txn, row, cols)
		return nil
	})
}

func (a *API) DeleteLRouter(name string, ifExists bool) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		row, err := lookup(txn, ovn.TableLRouter, name)
		if err != nil {
			return missing(err, ifExists)
		}
		txn.Delete(row)
		return nil
	})
}

// AddLRouterPort leaves an existing port of the same name untouched.
func (a *API) AddLRouterPort(name, lrouter string, cols ovsdb.Columns) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, cmd *Command) error {
		router, err := lookup(txn, ovn.TableLRouter, lrouter)
		if err != nil {
			return err
		}
		if _, err := lookup(txn, ovn.TableLRouterPort, name); err == nil {
			return nil
		}
		port := a.insertNamed(txn, cmd, ovn.TableLRouterPort, name, cols)
		appendRef(txn, router, "ports", port)
		return nil
	})
}

func (a *API) DeleteLRouterPort(name, lrouter string, ifExists bool) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		port, err := lookup(txn, ovn.TableLRouterPort, name)
		if err != nil {
			return missing(err, ifExists)
		}
		router, err := lookup(txn, ovn.TableLRouter, lrouter)
		if err != nil {
			return err
		}
		removeRef(txn, router, "ports", port)
		return nil
	})
}

func (a *API) SetLRouterPortInLPort(lport, lrouterPort string) ovsdb.Command {
	return a.newCommand(func(txn *idl.Txn, _ *Command) error {
		port, err := lookup(txn, ovn.TableLPort, lport)
		if err != nil {
			return err
		}
		lrp, err := lookup(txn, ovn.TableLRouterPort, lrouterPort)
		if err != nil {
			return err
		}
		if _, ok := lrp.Ref().(ovsdb.NamedUUID); ok {
			return fmt.Errorf("%w: router port %s is not committed yet", ovsdb.ErrInvalidValue, lrouterPort)
		}
		txn.Set(port, "options", map[string]string{"router-port": lrp.UUID})
		txn.Set(port, "type", "router")
		return nil
	})
}

func (a *API) replica() *idl.Replica {
	return a.backend.Replica()
}

func (a *API) extIDsByName(table string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	r := a.replica()
	if r == nil {
		return out
	}
	for _, row := range r.Rows(table) {
		out[row.String("name")] = row.StringMap("external_ids")
	}
	return out
}

func (a *API) AllLogicalSwitchesExtIDs() map[string]map[string]string {
	return a.extIDsByName(ovn.TableLSwitch)
}

func (a *API) LogicalSwitchExtIDs(name string) map[string]string {
	r := a.replica()
	if r == nil {
		return map[string]string{}
	}
	row, err := r.RowByValue(ovn.TableLSwitch, "name", name)
	if err != nil {
		return map[string]string{}
	}
	return row.StringMap("external_ids")
}

func (a *API) AllLogicalPortsExtIDs() map[string]map[string]string {
	return a.extIDsByName(ovn.TableLPort)
}

// AllLogicalSwitchesWithPorts lists the switches tagged with lswitchKey
// and, for each, its ports tagged with lportKey.
func (a *API) AllLogicalSwitchesWithPorts(lswitchKey, lportKey string) []ovn.LSwitchPorts {
	var out []ovn.LSwitchPorts
	r := a.replica()
	if r == nil {
		return out
	}
	for _, sw := range r.Rows(ovn.TableLSwitch) {
		if _, ok := sw.StringMap("external_ids")[lswitchKey]; !ok {
			continue
		}
		entry := ovn.LSwitchPorts{Name: sw.String("name"), Ports: []string{}}
		for _, id := range sw.Refs("ports") {
			port, ok := r.Row(ovn.TableLPort, id)
			if !ok {
				continue
			}
			if _, ok := port.StringMap("external_ids")[lportKey]; ok {
				entry.Ports = append(entry.Ports, port.String("name"))
			}
		}
		out = append(out, entry)
	}
	return out
}

// ACLsForLSwitches collects the ACLs of the named switches. Names are
// mapped through ovsdb.OVNName; switches that no longer exist are skipped.
func (a *API) ACLsForLSwitches(names []string) ovn.ACLIndex {
	index := ovn.ACLIndex{ByPort: map[string][]ovn.ACLRecord{}, Switches: map[string]string{}}
	r := a.replica()
	if r == nil {
		return index
	}
	for _, name := range names {
		ovnName := ovsdb.OVNName(name)
		sw, err := r.RowByValue(ovn.TableLSwitch, "name", ovnName)
		if err != nil {
			continue
		}
		index.Switches[name] = sw.UUID
		for _, id := range sw.Refs("acls") {
			row, ok := r.Row(ovn.TableACL, id)
			if !ok {
				continue
			}
			rec := ovn.ACLRecord{UUID: row.UUID, LSwitch: ovnName, ACL: aclFromRow(row)}
			rec.LPort = rec.ExternalIDs[ovn.ExtIDLPort]
			index.ByPort[rec.LPort] = append(index.ByPort[rec.LPort], rec)
		}
	}
	return index
}

func aclFromRow(row *idl.Row) ovn.ACL {
	acl := ovn.ACL{
		Direction:   row.String("direction"),
		Match:       row.String("match"),
		Action:      row.String("action"),
		ExternalIDs: maps.Clone(row.StringMap("external_ids")),
	}
	if p, ok := row.Get("priority").(int64); ok {
		acl.Priority = int(p)
	}
	acl.Log, _ = row.Bool("log")
	return acl
}
