// Package ovs defines the Open_vSwitch database API implemented by the
// frontends in its sub-packages.
package ovs

import "github.com/danmuck/ovsfront/internal/ovsdb"

// API builds commands against the Open_vSwitch database.
type API interface {
	Transaction(opts ovsdb.TxnOptions) ovsdb.Transaction

	AddBr(name string, mayExist bool, datapathType string) ovsdb.Command
	DelBr(name string, ifExists bool) ovsdb.Command
	// BrExists results in a bool.
	BrExists(name string) ovsdb.Command
	PortToBr(name string) ovsdb.Command
	IfaceToBr(name string) ovsdb.Command
	// ListBr results in []string.
	ListBr() ovsdb.Command
	BrGetExternalID(name, field string) ovsdb.Command

	DbCreate(table string, cols ovsdb.Columns) ovsdb.Command
	DbDestroy(table, record string) ovsdb.Command
	DbSet(table, record string, cols ...ovsdb.ColumnValue) ovsdb.Command
	DbClear(table, record, column string) ovsdb.Command
	// DbGet results in the decoded column value. A set column holding one
	// element comes back as the bare atom, so callers must not assume a Set.
	DbGet(table, record, column string) ovsdb.Command
	// DbList and DbFind result in []map[string]any.
	DbList(table string, records, columns []string, ifExists bool) ovsdb.Command
	DbFind(table string, conditions []ovsdb.ColumnValue, columns []string) ovsdb.Command

	SetController(bridge string, controllers []string) ovsdb.Command
	DelController(bridge string) ovsdb.Command
	GetController(bridge string) ovsdb.Command
	SetFailMode(bridge, mode string) ovsdb.Command

	AddPort(bridge, port string, mayExist bool) ovsdb.Command
	DelPort(port, bridge string, ifExists bool) ovsdb.Command
	ListPorts(bridge string) ovsdb.Command
	ListIfaces(bridge string) ovsdb.Command
}
