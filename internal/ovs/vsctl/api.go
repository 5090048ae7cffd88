package vsctl

import (
	"github.com/danmuck/ovsfront/internal/ovs"
	"github.com/danmuck/ovsfront/internal/ovsdb"
)

// API is the ovs-vsctl backed Open_vSwitch frontend.
type API struct {
	cfg Config
}

var _ ovs.API = (*API)(nil)

func New(cfg Config) *API {
	return &API{cfg: cfg.withDefaults()}
}

func (a *API) Transaction(opts ovsdb.TxnOptions) ovsdb.Transaction {
	return newTransaction(a.cfg, opts)
}

func mayExistOpt(flag bool) []string {
	if flag {
		return []string{"--may-exist"}
	}
	return nil
}

func ifExistsOpt(flag bool) []string {
	if flag {
		return []string{"--if-exists"}
	}
	return nil
}

func (a *API) AddBr(name string, mayExist bool, datapathType string) ovsdb.Command {
	params := []string{name}
	if datapathType != "" {
		params = append(params, "--", "set", "Bridge", name, "datapath_type="+datapathType)
	}
	return newBase(a.cfg, "add-br", mayExistOpt(mayExist), params)
}

func (a *API) DelBr(name string, ifExists bool) ovsdb.Command {
	return newBase(a.cfg, "del-br", ifExistsOpt(ifExists), []string{name})
}

func (a *API) BrExists(name string) ovsdb.Command {
	return newBrExists(a.cfg, name)
}

func (a *API) PortToBr(name string) ovsdb.Command {
	return newBase(a.cfg, "port-to-br", nil, []string{name})
}

func (a *API) IfaceToBr(name string) ovsdb.Command {
	return newBase(a.cfg, "iface-to-br", nil, []string{name})
}

func (a *API) ListBr() ovsdb.Command {
	return newMultiLine(a.cfg, "list-br", nil)
}

func (a *API) BrGetExternalID(name, field string) ovsdb.Command {
	return newBase(a.cfg, "br-get-external-id", nil, []string{name, field})
}

func (a *API) DbCreate(table string, cols ovsdb.Columns) ovsdb.Command {
	args := append([]string{table}, ovsdb.ColumnArgs(ovsdb.ColumnsFromMap(cols)...)...)
	return newBase(a.cfg, "create", nil, args)
}

func (a *API) DbDestroy(table, record string) ovsdb.Command {
	return newBase(a.cfg, "destroy", nil, []string{table, record})
}

func (a *API) DbSet(table, record string, cols ...ovsdb.ColumnValue) ovsdb.Command {
	args := append([]string{table, record}, ovsdb.ColumnArgs(cols...)...)
	return newBase(a.cfg, "set", nil, args)
}

func (a *API) DbClear(table, record, column string) ovsdb.Command {
	return newBase(a.cfg, "clear", nil, []string{table, record, column})
}

// DbGet uses list rather than get, because only list emits JSON.
func (a *API) DbGet(table, record, column string) ovsdb.Command {
	return newDbGet(a.cfg, table, record, column)
}

func (a *API) DbList(table string, records, columns []string, ifExists bool) ovsdb.Command {
	args := append([]string{table}, records...)
	return newDb(a.cfg, "list", ifExistsOpt(ifExists), args, columns)
}

func (a *API) DbFind(table string, conditions []ovsdb.ColumnValue, columns []string) ovsdb.Command {
	args := append([]string{table}, ovsdb.ColumnArgs(conditions...)...)
	return newDb(a.cfg, "find", nil, args, columns)
}

func (a *API) SetController(bridge string, controllers []string) ovsdb.Command {
	return newBase(a.cfg, "set-controller", nil, append([]string{bridge}, controllers...))
}

func (a *API) DelController(bridge string) ovsdb.Command {
	return newBase(a.cfg, "del-controller", nil, []string{bridge})
}

func (a *API) GetController(bridge string) ovsdb.Command {
	return newMultiLine(a.cfg, "get-controller", []string{bridge})
}

func (a *API) SetFailMode(bridge, mode string) ovsdb.Command {
	return newBase(a.cfg, "set-fail-mode", nil, []string{bridge, mode})
}

func (a *API) AddPort(bridge, port string, mayExist bool) ovsdb.Command {
	return newBase(a.cfg, "add-port", mayExistOpt(mayExist), []string{bridge, port})
}

// DelPort omits the bridge argument when bridge is empty.
func (a *API) DelPort(port, bridge string, ifExists bool) ovsdb.Command {
	args := []string{port}
	if bridge != "" {
		args = []string{bridge, port}
	}
	return newBase(a.cfg, "del-port", ifExistsOpt(ifExists), args)
}

func (a *API) ListPorts(bridge string) ovsdb.Command {
	return newMultiLine(a.cfg, "list-ports", []string{bridge})
}

func (a *API) ListIfaces(bridge string) ovsdb.Command {
	return newMultiLine(a.cfg, "list-ifaces", []string{bridge})
}
