package cmd

import (
	"voicewave/config"
	"voicewave/db"
	"voicewave/logger"
	"voicewave/model"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Initialize the database schema",
	Long:  `Creates the VoiceWave tables if they do not exist and runs GORM migrations.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.Config{Level: logger.LogLevel(cfg.LogLevel)})

		if err := db.ConnectDB(cfg); err != nil {
			logger.Fatal("failed to connect to database", logger.ErrorField(err))
		}
		defer db.DB.Close()

		if err := db.InitDB(); err != nil {
			logger.Fatal("failed to initialize schema", logger.ErrorField(err))
		}

		if err := db.ConnectGormDB(cfg); err != nil {
			logger.Fatal("failed to connect GORM", logger.ErrorField(err))
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrateModels(&model.Comment{}); err != nil {
			logger.Fatal("failed to migrate comment model", logger.ErrorField(err))
		}

		logger.Info("migration complete")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
