package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danmuck/ovsfront/internal/agent"
	"github.com/danmuck/ovsfront/internal/config"
	"github.com/danmuck/ovsfront/internal/logging"
	"github.com/danmuck/ovsfront/internal/manifest"
)

var errCheckFailed = errors.New("manifest check failed")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ovsfrontctl",
		Short:        "OVSDB frontend tooling and port status daemon",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureRuntime()
		},
	}
	cmd.AddCommand(manifestCmd(), configCmd(), serveCmd())
	return cmd
}

func manifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect requirement manifests",
	}
	cmd.AddCommand(manifestCheckCmd())
	return cmd
}

func manifestCheckCmd() *cobra.Command {
	var format string
	var envPairs []string

	c := &cobra.Command{
		Use:   "check FILE",
		Short: "Parse and validate a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			m, err := manifest.ParseFile(path)
			var perr *manifest.ParseError
			if err != nil && !errors.As(err, &perr) {
				return err
			}

			report := manifest.NewReport(path, m)
			if perr != nil {
				for _, le := range perr.Errors {
					report.Issues = append(report.Issues, manifest.Issue{
						Line:     le.Line,
						Severity: manifest.SeverityError,
						Message:  le.Err.Error(),
					})
				}
			}

			if len(envPairs) > 0 {
				env, err := manifest.ParseEnvironment(envPairs)
				if err != nil {
					return err
				}
				if report.Entries, err = m.Applicable(env); err != nil {
					return err
				}
			}

			if err := report.Encode(cmd.OutOrStdout(), format); err != nil {
				return err
			}
			if !report.OK() {
				return errCheckFailed
			}
			return nil
		},
	}
	c.Flags().StringVarP(&format, "format", "f", manifest.FormatText, "Report format: text, json or yaml")
	c.Flags().StringArrayVarP(&envPairs, "env", "e", nil, "Marker variable as key=value; limits the report to applicable entries")
	return c
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate and validate configuration files",
	}
	cmd.AddCommand(configGenCmd(), configValidateCmd())
	return cmd
}

func configGenCmd() *cobra.Command {
	var output string
	var force bool

	c := &cobra.Command{
		Use:   "gen",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.WriteTemplate(output, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "ovsfront.toml", "Output path")
	c.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return c
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate PATH",
		Short: "Load and validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK ovs=%s ovn=%s endpoint=%s\n", cfg.OVS.Interface, cfg.OVN.Interface, cfg.OVN.Connection)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var path string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the northbound port monitor and HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Default()
			if path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			logging.Infof("ovsfrontctl.serve config=%q interface=%s endpoint=%s", path, cfg.OVN.Interface, cfg.OVN.Connection)
			return agent.NewService(cfg).Run()
		},
	}
	c.Flags().StringVarP(&path, "config", "c", "", "Configuration file (defaults apply when omitted)")
	return c
}
