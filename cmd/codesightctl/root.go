package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"basegraph.app/codesight/common/id"
	"basegraph.app/codesight/common/logger"
	"basegraph.app/codesight/core/config"
	"basegraph.app/codesight/core/db"
	"basegraph.app/codesight/internal/provider"
	"basegraph.app/codesight/internal/queue"
	"basegraph.app/codesight/internal/service"
	"basegraph.app/codesight/internal/store"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:          "codesightctl",
	Short:        "Operate the codesight connection service",
	Long:         `Administrative commands for schema migrations and repository connection reconciliation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		logger.Setup(cfg)
		return id.Init(2)
	},
}

// withServices opens the database and builds the service graph for one command.
func withServices(ctx context.Context, fn func(*service.Services) error) error {
	if err := cfg.RequireWebhook(); err != nil {
		return err
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()

	providers, err := provider.NewFactory(cfg.Provider.Name, provider.OptionsFromConfig(cfg.Provider, cfg.Webhook.Secret, nil))
	if err != nil {
		return err
	}

	services := service.NewServices(store.NewStores(database.Pool()), providers, queue.NewNopProducer(slog.Default()), nil, service.ServicesConfig{
		CallbackURL:              cfg.CallbackURL(),
		DisconnectAllConcurrency: cfg.Reconcile.DisconnectAllConcurrency,
		DefaultPageSize:          cfg.Reconcile.DefaultPageSize,
	})
	return fn(services)
}
