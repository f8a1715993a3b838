// Command promptctl manages the prompt collection from a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/rpggio/promptkeeper/internal/backend"
	"github.com/rpggio/promptkeeper/internal/config"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
	"github.com/rpggio/promptkeeper/internal/logging"
	"github.com/rpggio/promptkeeper/internal/repository"
	"github.com/spf13/cobra"
)

var version = "dev"

type appKey struct{}

// app holds what every subcommand needs; PersistentPreRunE builds it.
type app struct {
	store   repository.KVStore
	library *prompt.Library
}

var rootCmd = &cobra.Command{
	Use:           "promptctl",
	Short:         "Manage saved prompts",
	Long:          "Browse, edit, import and export the prompt collection shared with the promptkeeper server",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if backendFlag, _ := cmd.Flags().GetString("backend"); backendFlag != "" {
			cfg.Store.Backend = backendFlag
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}

		if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
			cfg.Log.Level = "error"
		}
		logger := logging.New(cfg.Log, os.Stderr)

		store, err := backend.Open(cmd.Context(), cfg.Store, logger)
		if err != nil {
			return err
		}

		svc := prompt.NewService(store, logger, prompt.Options{
			Key:        cfg.Store.Key,
			MaxPrompts: cfg.Repository.MaxPrompts,
			OpTimeout:  cfg.Repository.OpTimeout,
			MaxRetries: cfg.Repository.MaxRetries,
		})
		a := &app{store: store, library: prompt.NewLibrary(svc, logger)}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
			return a.store.Close()
		}
		return nil
	},
}

func getApp(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

func init() {
	rootCmd.PersistentFlags().String("backend", "", "Override the configured store backend (sqlite, redis, memory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at the configured level instead of errors only")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}
