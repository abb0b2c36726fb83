package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gosyncbox/syncbox/internal/plan"
	"github.com/gosyncbox/syncbox/internal/syncclient"
	"github.com/gosyncbox/syncbox/internal/wire"
)

func runSync(cmd *cobra.Command, mode plan.Mode) error {
	cfg, err := loadClientConfig(cmd)
	if err != nil {
		return err
	}

	var key *wire.Key
	if cfg.Encryption.Enabled {
		key, err = wire.LoadKeyFromFile(cfg.Encryption.KeyFile)
		if err != nil {
			return fmt.Errorf("load key file: %w", err)
		}
	}

	driver := syncclient.New(syncclient.Config{
		ServerAddr:       net.JoinHostPort(cfg.Client.RemoteHost, fmt.Sprint(cfg.Client.RemotePort)),
		Root:             cfg.Client.LocalRoot,
		StatePath:        statePath(cfg.Client.LocalRoot),
		IgnorePatterns:   cfg.Sync.IgnorePatterns,
		Mode:             mode,
		ConflictStrategy: cfg.Sync.ConflictStrategyValue(),
		Key:              key,
		Compression:      cfg.Sync.Compression,
		ChunkSize:        cfg.Sync.ChunkSize,
	})

	result, err := driver.Run(context.Background())
	if err != nil {
		if errors.Is(err, syncclient.ErrConflicts) && result != nil {
			exitConflict = true
			for _, c := range result.Conflicts {
				fmt.Fprintf(cmd.OutOrStdout(), "CONFLICT %s: %s (%s)\n", c.Path, c.Explanation, c.Kind)
			}
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "uploaded=%d downloaded=%d deleted=%d sync_version=%d\n",
		len(result.Uploaded), len(result.Downloaded), len(result.Deleted), result.NewSyncVersion)
	return nil
}

func statePath(root string) string {
	return filepath.Join(root, "client_sync_state.json")
}
