package main

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/zones"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <address>...",
	Short: "Print the zones each address falls in",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zs, err := zones.Load(cfg.ZonesFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, address := range args {
			var names []string
			for _, z := range domain.ClassifyAll(address, zs) {
				names = append(names, z.Name)
			}
			if len(names) == 0 {
				names = []string{"-"}
			}
			fmt.Fprintf(out, "%s\t%s\n", address, strings.Join(names, ", "))
		}
		return nil
	},
}
