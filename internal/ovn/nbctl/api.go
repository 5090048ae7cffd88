package nbctl

import (
	"fmt"

	"github.com/danmuck/ovsfront/internal/ovn"
	"github.com/danmuck/ovsfront/internal/ovsdb"
)

type API struct {
	cfg Config
}

var _ ovn.API = (*API)(nil)

func New(cfg Config) *API {
	return &API{cfg: cfg.withDefaults()}
}

func (a *API) Transaction(opts ovsdb.TxnOptions) ovsdb.Transaction {
	return newTransaction(a.cfg, opts)
}

func ifExists(flag bool, parts ...string) []string {
	if flag {
		return append([]string{"--if-exists"}, parts...)
	}
	return parts
}

// withColumns appends a generic set for extra columns of a row that a
// dedicated command just created.
func (a *API) withColumns(table, record string, cols ovsdb.Columns, first []string) *Command {
	segments := [][]string{first}
	if len(cols) > 0 {
		segments = append(segments, append(seg("set", table, record), columnArgs(cols)...))
	}
	return newCommand(a.cfg, segments...)
}

// CreateLSwitch ignores mayExist; lswitch-add has no such option.
func (a *API) CreateLSwitch(name string, mayExist bool, cols ovsdb.Columns) ovsdb.Command {
	return a.withColumns(ovn.TableLSwitch, name, cols, seg("lswitch-add", name))
}

func (a *API) SetLSwitchExtID(name string, extID ovsdb.ExternalID, ifExists bool) ovsdb.Command {
	return newCommand(a.cfg, seg("lswitch-set-external-id", name, extID.Key, extID.Value))
}

func (a *API) DeleteLSwitch(name string, ifExists bool) ovsdb.Command {
	return newCommand(a.cfg, seg("lswitch-del", name))
}

func (a *API) DeleteLSwitchByExtID(extID ovsdb.ExternalID, ifExists bool) (ovsdb.Command, error) {
	return nil, fmt.Errorf("%w: nbctl deletes logical switches by name only", ovsdb.ErrUnsupported)
}

func (a *API) CreateLPort(name, lswitch string, mayExist bool, cols ovsdb.Columns) ovsdb.Command {
	return a.withColumns(ovn.TableLPort, name, cols, seg("lport-add", lswitch, name))
}

func (a *API) SetLPort(name string, flag bool, cols ovsdb.Columns) ovsdb.Command {
	if len(cols) == 0 {
		return newCommand(a.cfg)
	}
	return newCommand(a.cfg, append(ifExists(flag, "set", ovn.TableLPort, name), columnArgs(cols)...))
}

func (a *API) SetLPortExtID(name string, extID ovsdb.ExternalID) ovsdb.Command {
	return newCommand(a.cfg, seg("lport-set-external-id", name, extID.Key, extID.Value))
}

func (a *API) SetLPortMAC(name string, macs ...string) ovsdb.Command {
	return newCommand(a.cfg, append(seg("lport-set-macs", name), macs...))
}

func (a *API) SetLPortUpStatus(name string, up bool) ovsdb.Command {
	return newCommand(a.cfg, seg("set", ovn.TableLPort, name, "up="+ovsdb.FormatValue(up)))
}

func (a *API) DeleteLPort(name, lswitch string, ifExists bool) ovsdb.Command {
	return newCommand(a.cfg, seg("lport-del", name))
}

func (a *API) DeleteLPortByExtID(extID ovsdb.ExternalID, ifExists bool) (ovsdb.Command, error) {
	return nil, fmt.Errorf("%w: nbctl deletes logical ports by name only", ovsdb.ErrUnsupported)
}

func (a *API) CreateACLRule(lswitch string, rule ovn.ACL) (ovsdb.Command, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return newCommand(a.cfg,
		append(seg("--id=@acl", "create", ovn.TableACL), columnArgs(rule.Columns())...),
		seg("add", ovn.TableLSwitch, lswitch, "acls", "@acl"),
	).declares("@acl"), nil
}

func (a *API) AddACL(lswitch, lport string, rule ovn.ACL) (ovsdb.Command, error) {
	return a.CreateACLRule(lswitch, rule.WithLPort(lport))
}

func (a *API) DeleteACL(lswitch, lport string, ifExists bool) (ovsdb.Command, error) {
	return nil, fmt.Errorf("%w: nbctl cannot select acls by port", ovsdb.ErrUnsupported)
}

// CreateLRouter ignores mayExist; the generic create never checks for an
// existing row.
func (a *API) CreateLRouter(name string, mayExist bool, cols ovsdb.Columns) ovsdb.Command {
	all := ovsdb.Columns{"name": name}
	for k, v := range cols {
		all[k] = v
	}
	return newCommand(a.cfg, append(seg("create", ovn.TableLRouter), columnArgs(all)...))
}

func (a *API) UpdateLRouter(name string, flag bool, cols ovsdb.Columns) ovsdb.Command {
	if len(cols) == 0 {
		return newCommand(a.cfg)
	}
	return newCommand(a.cfg, append(ifExists(flag, "set", ovn.TableLRouter, name), columnArgs(cols)...))
}

func (a *API) DeleteLRouter(name string, flag bool) ovsdb.Command {
	return newCommand(a.cfg, ifExists(flag, "destroy", ovn.TableLRouter, name))
}

func (a *API) AddLRouterPort(name, lrouter string, cols ovsdb.Columns) ovsdb.Command {
	all := ovsdb.Columns{"name": name}
	for k, v := range cols {
		all[k] = v
	}
	return newCommand(a.cfg,
		append(seg("--id=@lrp", "create", ovn.TableLRouterPort), columnArgs(all)...),
		seg("add", ovn.TableLRouter, lrouter, "ports", "@lrp"),
	).declares("@lrp")
}

func (a *API) DeleteLRouterPort(name, lrouter string, flag bool) ovsdb.Command {
	return newCommand(a.cfg,
		seg("--id=@lrp", "get", ovn.TableLRouterPort, name),
		ifExists(flag, "remove", ovn.TableLRouter, lrouter, "ports", "@lrp"),
	).declares("@lrp")
}

// SetLRouterPortInLPort stores the router port name in options:router-port;
// ctl commands cannot interpolate a row uuid into a map value.
func (a *API) SetLRouterPortInLPort(lport, lrouterPort string) ovsdb.Command {
	return newCommand(a.cfg, seg("set", ovn.TableLPort, lport,
		"options:router-port="+quote(lrouterPort), "type=router"))
}
