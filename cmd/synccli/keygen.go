package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gosyncbox/syncbox/internal/wire"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen <path>",
	Short: "Generate a new symmetric key file for encryption.key_file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		raw, err := wire.GenerateKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := wire.SaveKeyToFile(raw, args[0]); err != nil {
			return fmt.Errorf("save key: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote key to %s\n", args[0])
		return nil
	},
}
