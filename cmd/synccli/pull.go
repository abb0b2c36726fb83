package main

import (
	"github.com/spf13/cobra"

	"github.com/gosyncbox/syncbox/internal/plan"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download remote changes from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSync(cmd, plan.ModePull)
	},
}
