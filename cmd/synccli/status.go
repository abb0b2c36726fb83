package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gosyncbox/syncbox/internal/syncstate"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local sync state summary",
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

		active, deleted := 0, 0
		for _, f := range local.Files {
			if f.Active() {
				active++
			} else {
				deleted++
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "client_id:    %s\n", local.ClientID)
		fmt.Fprintf(cmd.OutOrStdout(), "sync_version: %d\n", local.SyncVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "base_version: %d\n", local.BaseVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "files:        %d active, %d tombstoned\n", active, deleted)
		fmt.Fprintf(cmd.OutOrStdout(), "last_sync:    %s\n", local.LastSyncTime)
		return nil
	},
}
