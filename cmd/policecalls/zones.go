package main

import (
	"github.com/couchcryptid/police-calls-etl/internal/zones"
	"github.com/spf13/cobra"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Print the zone table in effect as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		zs, err := zones.Load(cfg.ZonesFile)
		if err != nil {
			return err
		}
		b, err := zones.Marshal(zs)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}
