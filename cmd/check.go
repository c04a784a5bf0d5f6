package cmd

import (
	"voicewave/cache"
	"voicewave/config"
	"voicewave/db"
	"voicewave/logger"
	"voicewave/storage"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity to MySQL, Redis and MinIO",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})

		if err := db.ConnectDB(cfg); err != nil {
			logger.Fatal("database check failed", logger.ErrorField(err))
		}
		db.DB.Close()
		logger.Info("database ok")

		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Fatal("redis check failed", logger.ErrorField(err))
		}
		cache.CloseRedis()
		logger.Info("redis ok")

		if err := storage.InitMinio(cfg); err != nil {
			logger.Fatal("minio check failed", logger.ErrorField(err))
		}
		logger.Info("minio ok")
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
