package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders the default configuration as TOML.
func Template() (string, error) {
	data, err := toml.Marshal(toFile(Default()))
	if err != nil {
		return "", fmt.Errorf("render config template: %w", err)
	}
	return string(data), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func toFile(cfg Config) fileConfig {
	rootHelper := cfg.Exec.RootHelper
	if rootHelper == nil {
		rootHelper = []string{}
	}
	return fileConfig{
		OVS: ovsFile{
			Interface:    cfg.OVS.Interface,
			Connection:   cfg.OVS.Connection,
			VsctlTimeout: cfg.OVS.VsctlTimeout.String(),
		},
		OVN: ovnFile{
			Interface:         cfg.OVN.Interface,
			Connection:        cfg.OVN.Connection,
			ConnectionTimeout: cfg.OVN.ConnectionTimeout.String(),
			Database:          cfg.OVN.Database,
			EventLock:         cfg.OVN.EventLock,
		},
		Exec: execFile{
			RootHelper:    rootHelper,
			SSHHost:       cfg.Exec.SSHHost,
			SSHUser:       cfg.Exec.SSHUser,
			SSHKey:        cfg.Exec.SSHKey,
			SSHKnownHosts: cfg.Exec.SSHKnownHosts,
		},
		HTTP: httpFile{
			Addr:        cfg.HTTP.Addr,
			CorsOrigins: cfg.HTTP.CorsOrigins,
			AuthToken:   cfg.HTTP.AuthToken,
		},
	}
}
