package config

import (
	"github.com/danmuck/ovsfront/internal/tools"
)

// Runner returns the command runner the ctl backends execute through.
func (c ExecConfig) Runner() tools.CommandRunner {
	if c.SSHHost == "" {
		return tools.ExecRunner{RootHelper: c.RootHelper}
	}
	return tools.SSHRunner{
		Host:           c.SSHHost,
		User:           c.SSHUser,
		KeyPath:        c.SSHKey,
		KnownHostsPath: c.SSHKnownHosts,
		RootHelper:     c.RootHelper,
	}
}
