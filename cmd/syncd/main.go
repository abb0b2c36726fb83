package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gosyncbox/syncbox/internal/config"
	"github.com/gosyncbox/syncbox/internal/syncserver"
	"github.com/gosyncbox/syncbox/internal/wire"
	"github.com/gosyncbox/syncbox/pkg/version"
)

var dotenvLoaded bool

var rootCmd = &cobra.Command{
	Use:     "syncd",
	Short:   "syncbox sync server",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig(cmd)
		if err != nil {
			cmd.SilenceUsage = false
			return err
		}

		slog.Info("syncd config", "dotenvLoaded", dotenvLoaded, "bind", cfg.Server.BindAddress, "data_root", cfg.Server.DataRoot)

		var key *wire.Key
		if cfg.Encryption.Enabled {
			key, err = wire.LoadKeyFromFile(cfg.Encryption.KeyFile)
			if err != nil {
				return fmt.Errorf("load key file: %w", err)
			}
		}

		srv, err := syncserver.New(syncserver.Config{
			Addr:        cfg.Server.BindAddress,
			StatePath:   fmt.Sprintf("%s/server_sync_state.json", cfg.Server.DataRoot),
			FilesDir:    fmt.Sprintf("%s/files", cfg.Server.DataRoot),
			AuditDBPath: fmt.Sprintf("%s/audit.db", cfg.Server.DataRoot),
			Key:         key,
			Compression: cfg.Sync.Compression,
			IdleTimeout: cfg.Server.IdleTimeout,
			MaxWorkers:  cfg.Server.MaxWorkers,
		})
		if err != nil {
			slog.Error("syncd", "error", err)
			return err
		}

		defer slog.Info("Bye!")
		if err := srv.Start(cmd.Context()); err != nil {
			slog.Error("syncd", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("config", "f", "", "Path to config file (e.g., config.yaml)")
	rootCmd.Flags().StringP("bind", "b", config.DefaultServerBindAddress, "Address to bind the server")
	rootCmd.Flags().StringP("data-dir", "d", config.DefaultDataRoot, "Directory for server state and file bodies")

	if err := godotenv.Load(".env"); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Println("Error loading .env file", err)
			os.Exit(1)
		}
	} else {
		dotenvLoaded = true
	}
}

func main() {
	logger := slog.New(setupHandler())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupHandler() slog.Handler {
	switch os.Getenv("SYNCBOX_ENV") {
	case "PROD", "STAGE":
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		return tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			AddSource:  true,
			TimeFormat: time.DateTime,
		})
	}
}

func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	configFile := ""
	if cmd.Flag("config").Changed {
		configFile = cmd.Flag("config").Value.String()
	}

	return config.LoadServer(configFile, func(v *viper.Viper) {
		v.BindPFlag("server.bind_address", cmd.Flags().Lookup("bind"))
		v.BindPFlag("server.data_root", cmd.Flags().Lookup("data-dir"))
	})
}
