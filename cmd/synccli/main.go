package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gosyncbox/syncbox/internal/config"
	"github.com/gosyncbox/syncbox/internal/syncclient"
	"github.com/gosyncbox/syncbox/pkg/version"
)

// exitConflict is set by runSync when the server reports unresolved
// conflicts; main then exits with code 2 (spec §6).
var exitConflict = false

var rootCmd = &cobra.Command{
	Use:     "synccli",
	Short:   "syncbox client CLI",
	Version: version.Detailed(),
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "f", "", "Path to config file (e.g., config.yaml)")
	rootCmd.PersistentFlags().StringP("root", "r", "", "Local sync root (overrides client.local_root)")
	rootCmd.PersistentFlags().StringP("server", "s", "", "Remote server address host:port (overrides client.remote_host/port)")
	rootCmd.PersistentFlags().StringP("conflict", "c", "", "Conflict strategy: ask|local|remote|skip (overrides sync.conflict_strategy)")

	rootCmd.AddCommand(pushCmd, pullCmd, listCmd, changesCmd, statusCmd, keygenCmd)
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.DateTime,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if exitConflict || errors.Is(err, syncclient.ErrConflicts) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// loadClientConfig applies loadConfig's precedence (config file < env <
// flags) via config.LoadClient, then overlays per-command flag overrides.
func loadClientConfig(cmd *cobra.Command) (*config.ClientConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadClient(configFile, func(v *viper.Viper) {
		if root, _ := cmd.Flags().GetString("root"); root != "" {
			v.Set("client.local_root", root)
		}
		if strategy, _ := cmd.Flags().GetString("conflict"); strategy != "" {
			v.Set("sync.conflict_strategy", strategy)
		}
	})
	if err != nil {
		return nil, err
	}

	if server, _ := cmd.Flags().GetString("server"); server != "" {
		host, port, splitErr := splitHostPort(server)
		if splitErr != nil {
			return nil, splitErr
		}
		cfg.Client.RemoteHost = host
		cfg.Client.RemotePort = port
	}
	return cfg, nil
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --server %q, want host:port: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid --server %q, want host:port: %w", addr, err)
	}
	return host, port, nil
}
