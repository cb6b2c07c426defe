package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/daybreak-hq/daybreak/config"
	"github.com/daybreak-hq/daybreak/internal/history"
	"github.com/daybreak-hq/daybreak/internal/llm"
	"github.com/daybreak-hq/daybreak/internal/server"
	"github.com/daybreak-hq/daybreak/internal/store"
	"github.com/daybreak-hq/daybreak/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			st, err := store.NewFileStore(cfg.Storage.DataDir)
			if err != nil {
				return err
			}

			var hist history.Store
			if cfg.Storage.Redis.Address != "" {
				client, err := history.Conn(cmd.Context(), cfg.Storage.Redis.Address, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
				if err != nil {
					return err
				}
				hist = history.NewRedisStore(client, cfg.History.Keep, 0)
			} else {
				hist = history.NewMemoryStore(cfg.History.Keep)
			}

			registry := llm.NewRegistry(cfg.ProviderConfigs(), log.New(log.Writer(), "[LLM] ", log.LstdFlags))
			metrics := telemetry.New(prometheus.DefaultRegisterer)

			srv, err := server.New(cfg, st, hist, registry, metrics, nil)
			if err != nil {
				return err
			}
			return srv.Start()
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config/config.json)")
	return serve
}
