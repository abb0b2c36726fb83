package main

import (
	"github.com/spf13/cobra"

	"github.com/gosyncbox/syncbox/internal/plan"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload local changes to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSync(cmd, plan.ModePush)
	},
}
