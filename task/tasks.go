package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/database"
	"github.com/angas/awattar-go/types"
	"github.com/robfig/cron/v3"
)

const maintenanceSpec = "30 2 * * *"

type Tasks struct {
	cron            *cron.Cron
	runAt           string
	SpotPriceTask   *SpotPriceTask
	MaintenanceTask func()
}

// NewTasks wires the scheduled tasks. db may be nil, then no maintenance is scheduled.
func NewTasks(
	runAt string,
	fetcher PriceFetcher,
	store types.StateStore,
	db *database.Database,
	cnfg func() *config.AppConfig,
) *Tasks {
	logger := slog.Default().With("module", "tasks")
	t := &Tasks{
		cron:          cron.New(),
		runAt:         runAt,
		SpotPriceTask: NewSpotPriceTask(logger.With(slog.String("task", "spot_price")), fetcher, store, cnfg),
	}
	if db != nil {
		t.MaintenanceTask = NewMaintenanceTask(logger.With(slog.String("task", "maintenance")), db, cnfg)
	}
	return t
}

func (t *Tasks) Run() error {
	if _, err := t.cron.AddFunc(t.runAt, t.SpotPriceTask.Func()); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", t.runAt, err)
	}
	if t.MaintenanceTask != nil {
		if _, err := t.cron.AddFunc(maintenanceSpec, t.MaintenanceTask); err != nil {
			return err
		}
	}
	t.cron.Start()
	return nil
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
