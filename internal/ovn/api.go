// Package ovn defines the OVN northbound frontend shared by the ovn-nbctl
// and native OVSDB backends.
package ovn

import (
	"github.com/danmuck/ovsfront/internal/ovsdb"
)

const (
	Database = "OVN_Northbound"

	TableLSwitch     = "Logical_Switch"
	TableLPort       = "Logical_Port"
	TableACL         = "ACL"
	TableLRouter     = "Logical_Router"
	TableLRouterPort = "Logical_Router_Port"

	// ExtIDLPort tags ACL rows with the logical port they were created for.
	ExtIDLPort       = "neutron:lport"
	ExtIDNetworkName = "neutron:network_name"
	ExtIDPortName    = "neutron:port_name"
)

// Tables lists the northbound tables the frontends replicate.
var Tables = []string{TableACL, TableLRouter, TableLRouterPort, TableLPort, TableLSwitch}

// API builds northbound commands. Commands run on their own through
// Execute or together through a Transaction.
type API interface {
	Transaction(opts ovsdb.TxnOptions) ovsdb.Transaction

	CreateLSwitch(name string, mayExist bool, cols ovsdb.Columns) ovsdb.Command
	SetLSwitchExtID(name string, extID ovsdb.ExternalID, ifExists bool) ovsdb.Command
	DeleteLSwitch(name string, ifExists bool) ovsdb.Command
	DeleteLSwitchByExtID(extID ovsdb.ExternalID, ifExists bool) (ovsdb.Command, error)

	CreateLPort(name, lswitch string, mayExist bool, cols ovsdb.Columns) ovsdb.Command
	SetLPort(name string, ifExists bool, cols ovsdb.Columns) ovsdb.Command
	SetLPortExtID(name string, extID ovsdb.ExternalID) ovsdb.Command
	SetLPortMAC(name string, macs ...string) ovsdb.Command
	SetLPortUpStatus(name string, up bool) ovsdb.Command
	DeleteLPort(name, lswitch string, ifExists bool) ovsdb.Command
	DeleteLPortByExtID(extID ovsdb.ExternalID, ifExists bool) (ovsdb.Command, error)

	CreateACLRule(lswitch string, rule ACL) (ovsdb.Command, error)
	AddACL(lswitch, lport string, rule ACL) (ovsdb.Command, error)
	DeleteACL(lswitch, lport string, ifExists bool) (ovsdb.Command, error)

	CreateLRouter(name string, mayExist bool, cols ovsdb.Columns) ovsdb.Command
	UpdateLRouter(name string, ifExists bool, cols ovsdb.Columns) ovsdb.Command
	DeleteLRouter(name string, ifExists bool) ovsdb.Command
	AddLRouterPort(name, lrouter string, cols ovsdb.Columns) ovsdb.Command
	DeleteLRouterPort(name, lrouter string, ifExists bool) ovsdb.Command
	SetLRouterPortInLPort(lport, lrouterPort string) ovsdb.Command
}

// LSwitchPorts lists the tagged ports of one logical switch.
type LSwitchPorts struct {
	Name  string   `json:"name"`
	Ports []string `json:"ports"`
}

// ACLRecord is a stored ACL together with the switch and port it belongs
// to.
type ACLRecord struct {
	UUID    string `json:"uuid"`
	LSwitch string `json:"lswitch"`
	LPort   string `json:"lport"`
	ACL
}

// ACLIndex groups the ACLs of a set of switches by port. Switches maps
// each requested switch that exists onto its row uuid.
type ACLIndex struct {
	ByPort   map[string][]ACLRecord
	Switches map[string]string
}

// Reader answers queries from a local replica of the northbound database.
type Reader interface {
	AllLogicalSwitchesExtIDs() map[string]map[string]string
	LogicalSwitchExtIDs(name string) map[string]string
	AllLogicalPortsExtIDs() map[string]map[string]string
	AllLogicalSwitchesWithPorts(lswitchKey, lportKey string) []LSwitchPorts
	ACLsForLSwitches(names []string) ACLIndex
}
