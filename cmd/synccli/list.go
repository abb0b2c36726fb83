package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gosyncbox/syncbox/internal/syncstate"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List files tracked in the local sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadClientConfig(cmd)
		if err != nil {
			return err
		}

		local, err := syncstate.Load(statePath(cfg.Client.LocalRoot))
		if err != nil {
			return err
		}

		paths := make([]string, 0, len(local.Files))
		for p := range local.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		for _, p := range paths {
			f := local.Files[p]
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s v%-4d %-8s %s\n", p, f.Version, f.Status, f.Hash)
		}
		return nil
	},
}
