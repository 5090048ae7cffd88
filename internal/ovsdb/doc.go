// Package ovsdb holds the primitives shared by every OVSDB frontend:
// the command/transaction contract, OVSDB value encoding and the
// ctl-argument formatting rules.
//
// Backends live in sub-packages and in the ovs/ovn packages. A backend only
// accepts commands it built itself; mixing commands across backends in one
// transaction fails with ErrForeignCommand.
package ovsdb
