// Implements: daybook init.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/daybook/internal/paths"
)

type initResult struct {
	ConfigFile    string `json:"config_file"`
	Database      string `json:"database"`
	SchemaVersion int    `json:"schema_version"`
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file and the database",
		Long: `Creates config.yaml in the config directory if it is missing, then opens
the database in the data directory and applies any pending migrations.
Running init again is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			v, err := a.store.SchemaVersion(cmd.Context())
			if err != nil {
				return sysError(err)
			}
			res := initResult{
				ConfigFile:    paths.ConfigFile(a.configDir),
				Database:      a.store.Path(),
				SchemaVersion: v,
			}
			if a.flagJSON {
				return printJSON(a.stdout, res)
			}
			fmt.Fprintf(a.stdout, "config:   %s\n", res.ConfigFile)
			fmt.Fprintf(a.stdout, "database: %s (schema v%d)\n", res.Database, res.SchemaVersion)
			return nil
		},
	}
}
