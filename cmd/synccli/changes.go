package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gosyncbox/syncbox/internal/plan"
	"github.com/gosyncbox/syncbox/internal/syncstate"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show the push-mode plan computed against local edits since the last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadClientConfig(cmd)
		if err != nil {
			return err
		}

		// The persisted local state is also the last-seen remote state: it
		// was last written from the server's own acknowledgment, so it
		// mirrors what the server holds as of base_version. A freshly
		// reconciled copy of it stands in for "local" so the preview is
		// exactly the plan a real push would negotiate, without opening a
		// connection.
		lastSeen, err := syncstate.Load(statePath(cfg.Client.LocalRoot))
		if err != nil {
			return err
		}

		scanner := syncstate.NewScanner(cfg.Client.LocalRoot, cfg.Sync.IgnorePatterns)
		scanned, err := scanner.Scan()
		if err != nil {
			return err
		}

		reconciled := *lastSeen
		reconciled.Files = syncstate.Reconcile(lastSeen.Files, scanned, time.Now())

		computed, err := plan.Compute(&reconciled, lastSeen, plan.ModePush, plan.StrategyAsk)
		if err != nil {
			return err
		}

		if len(computed.Transfers) == 0 && len(computed.Deletes) == 0 && len(computed.Conflicts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no local changes")
			return nil
		}

		for _, a := range computed.Transfers {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-40s v%d\n", a.Kind, a.Path, a.Version)
		}
		for _, a := range computed.Deletes {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-40s v%d\n", a.Kind, a.Path, a.Version)
		}
		for _, a := range computed.Conflicts {
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-40s %s\n", "conflict", a.Path, a.Explanation)
		}
		return nil
	},
}
