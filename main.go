package main

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/logger"
	"Go_PanStore/internal/metrics"
	"Go_PanStore/internal/mq"
	"Go_PanStore/internal/repo"
	"Go_PanStore/internal/service"
	"Go_PanStore/internal/storage"
	"Go_PanStore/utils"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "panstore",
		Short: "Maintenance commands for the storage lifecycle engine",
		Long: `Maintenance commands for the storage lifecycle engine.

Connection settings come from the environment (DB_*, REDIS_*, MINIO_*,
RABBITMQ_*). Storage policy comes from QUOTA_*, MAX_VERSIONS, RECYCLE_*.

Examples:
  # Purge expired recycle-bin entries now
  panstore sweep

  # Recompute every owner's usage counter
  panstore reconcile

  # Give owner 42 a 10 GiB ceiling
  panstore quota set --owner 42 --bytes 10737418240

  # Hand an expiry sweep to the worker
  panstore publish-sweep`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.InitConfig()
			logger.Init(config.AppConfig.LogLevel, config.AppConfig.LogFormat)
			repo.InitMysql()
			repo.InitRedis()
			utils.InitCacheManager()
			storage.InitMinio()
			metrics.Init(nil)
			service.ReportOrphan = mq.ReportOrphan
		},
	}

	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newReconcileCmd())
	rootCmd.AddCommand(newQuotaCmd())
	rootCmd.AddCommand(newPublishSweepCmd())
	return rootCmd
}
