package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crm-sync/internal/domain/entity"
	"crm-sync/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "crm-sync",
		Short:         "Teamleader company sync service",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				return os.Setenv("CONFIG_FILE", configFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to the config file")

	root.AddCommand(newServeCommand(), newSyncCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.NewApplication().Serve(cmd.Context())
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "sync [companies|custom-fields]",
		Short:     "Run one sync and print its summary",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"companies", "custom-fields"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseSyncKind(args[0])
			if err != nil {
				return err
			}

			summary, err := service.NewApplication().RunSync(cmd.Context(), kind)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(summary); err != nil {
				return fmt.Errorf("failed to write summary: %w", err)
			}

			if !summary.Success {
				return fmt.Errorf("sync %s finished with status %s", summary.Kind, summary.Status())
			}
			return nil
		},
	}
}

func parseSyncKind(arg string) (entity.SyncKind, error) {
	switch arg {
	case "companies":
		return entity.SyncKindCompanies, nil
	case "custom-fields", "custom_fields":
		return entity.SyncKindCustomFields, nil
	}
	return "", fmt.Errorf("unknown sync kind %q, expected companies or custom-fields", arg)
}
