// Package tools provides the command execution boundary used by the ctl
// frontends.
//
// Ownership boundary:
// - local and remote command execution
//
// - root-helper prefixing
//
// - exit status classification
package tools
