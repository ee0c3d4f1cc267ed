package main

import (
	"github.com/spf13/cobra"

	"github.com/maglo/invoicing/internal/infrastructure/backend"
	"github.com/maglo/invoicing/internal/infrastructure/config"
	"github.com/maglo/invoicing/pkg/logger"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create the document store indexes and exit",
	Long: `Creates the indexes the invoice and user collections rely on: the
per-user listing order and the unique e-mail constraint. SQLite creates them
in its migrations, so this is a no-op there.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}
		log := initLogger(cfg)

		docs, err := backend.New(ctx, backendConfig(cfg), logger.Component("backend"))
		if err != nil {
			return err
		}
		defer closeWith(log, "document store", docs.Cleanup)

		if err := docs.EnsureIndexes(ctx); err != nil {
			return err
		}
		log.Info().Str("backend", cfg.Backend.Type).Msg("indexes ensured")
		return nil
	},
}
