package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/database"
)

func NewMaintenanceTask(logger *slog.Logger, db *database.Database, cnfg func() *config.AppConfig) func() {
	return func() {
		logger.Debug("running maintenance task...")

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		c := cnfg()

		if path, err := db.Backup(ctx); err != nil {
			logger.Error("database backup error", slog.Any("error", err))
		} else {
			logger.Debug("database backup created", slog.String("file", path))
		}

		if err := db.PurgeBackups(ctx, c.Database.GetBackupRetentionDays()); err != nil {
			logger.Error("backup maintenance error", slog.Any("error", err))
		}

		if err := db.PurgeLog(ctx, c.Logging.GetDbMaxEntries()); err != nil {
			logger.Error("log maintenance error", slog.Any("error", err))
		}

		logger.Info("maintenance task done")
	}
}
