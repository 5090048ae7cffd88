// Package idl keeps an in-memory replica of an OVSDB database and builds
// transactions against it.
//
// The replica is fed by monitor update notifications. A Txn reads through
// the replica, stages inserts, updates and deletes, and turns them into
// RFC 7047 operations. Staged changes are visible to later reads in the
// same Txn, so several commands can build on each other before commit.
package idl
