package ovsdb

// OVNName is the OVN entity name for an external id. OVN treats names that
// parse as UUIDs specially, so the id is prefixed.
func OVNName(id string) string {
	return "neutron-" + id
}

// LRouterPortName names the logical router port paired with a switch port,
// keeping the generated patch port names distinct.
func LRouterPortName(id string) string {
	return "lrp-" + id
}
