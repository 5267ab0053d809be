package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/angas/awattar-go/awattar"
	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/database"
	"github.com/angas/awattar-go/hours"
	"github.com/angas/awattar-go/logging"
	"github.com/angas/awattar-go/store"
	"github.com/angas/awattar-go/task"
	"github.com/angas/awattar-go/types"
	"github.com/angas/awattar-go/www"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	// Set by a failed one-shot run, the exit happens after the stores are closed
	var runErr error
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else if runErr != nil {
			exitWithError(slog.Default(), runErr)
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("failed to load .env: %v", err))
	}

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := hours.SetLocation(cnfg.Publish.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	logger := slog.New(consoleHandler)
	slog.SetDefault(logger)
	logger.Debug("awattar is starting...", slog.String("version", Version))

	var db *database.Database
	if cnfg.Database.Enabled() {
		db, err = database.New(ctx, cnfg.Database.Path)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to database: %v", err))
		}
		defer db.Close()

		version, err := db.Version(ctx)
		if err != nil {
			panic(fmt.Sprintf("failed to read database version: %v", err))
		}

		logger = slog.New(logging.NewMultiHandler(
			consoleHandler,
			logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
		slog.SetDefault(logger)

		// Now we can use the logger to log database operations into the database itself
		db.SetLogger(logger.With("module", "database"))
		logger.Debug("database ready", slog.String("path", db.Path()), slog.Int("version", version))
	}

	var current atomic.Pointer[config.AppConfig]
	current.Store(cnfg)

	if !cnfg.Schedule.IsOneShot() {
		cnfg, err = config.Watch(*configPath, logger.With("module", "config"), func(c *config.AppConfig) {
			current.Store(c)
		})
		if err != nil {
			panic(fmt.Sprintf("failed to watch config: %v", err))
		}
		current.Store(cnfg)
	}

	var stores []types.StateStore
	if db != nil {
		stores = append(stores, db)
	}

	if cnfg.Mqtt.Enabled() {
		mq := store.NewMQTT(store.MQTTOptions{
			Host:        cnfg.Mqtt.Host,
			Port:        cnfg.Mqtt.GetPort(),
			Username:    cnfg.Mqtt.Username,
			Password:    cnfg.Mqtt.Password,
			ClientId:    cnfg.Mqtt.GetClientId(),
			TopicPrefix: cnfg.Mqtt.GetTopicPrefix(),
			Qos:         cnfg.Mqtt.Qos,
		})
		if err := mq.Connect(); err != nil {
			panic(fmt.Sprintf("mqtt connection error: %v", err))
		}
		defer mq.Disconnect()
		stores = append(stores, mq)
	}

	var memory *store.Memory
	if db == nil {
		memory = store.NewMemory()
		stores = append(stores, memory)
		if len(stores) == 1 {
			logger.Warn("neither database nor mqtt configured, prices are only kept in memory")
		}
	}

	var states types.StateStore = store.NewMulti(stores...)
	fetcher := awattar.New(cnfg.Awattar.ApiUrl, "awattar-go/"+Version)

	if cnfg.Schedule.IsOneShot() {
		runErr = runOnce(ctx, logger, fetcher, states, current.Load, cnfg.Schedule.GetExitDelay())
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	var hub *www.Hub
	if cnfg.Api.Enabled() {
		hub = www.NewHub(logger.With("module", "websocket"))
		go hub.Run(ctx)
		states = store.NewNotify(states, hub.OnStateChange)
	}

	tasks := task.NewTasks(cnfg.Schedule.RunAt, fetcher, states, db, current.Load)
	if err := tasks.Run(); err != nil {
		panic(fmt.Sprintf("failed to schedule tasks: %v", err))
	}
	defer tasks.Stop()

	go tasks.SpotPriceTask.Func()()

	if hub == nil {
		<-ctx.Done()
		return
	}

	var reader www.StateReader
	var logs www.LogReader
	if db != nil {
		reader = db
		logs = db
	} else {
		reader = www.MemoryStates(memory)
	}

	server := www.NewServer(cnfg.Api, hub, reader, logs, tasks.SpotPriceTask.Run)
	server.Run(ctx)
}

// runOnce fetches and publishes once and waits for delay before returning the result of the run.
func runOnce(ctx context.Context, logger *slog.Logger, fetcher task.PriceFetcher, states types.StateStore, cnfg func() *config.AppConfig, delay time.Duration) error {
	spotPrice := task.NewSpotPriceTask(logger.With(slog.String("task", "spot_price")), fetcher, states, cnfg)

	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err := spotPrice.Run(runCtx)
	cancel()

	logger.Debug("waiting before exit", slog.Duration("delay", delay))
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-time.After(delay):
	case <-sigCh:
	case <-ctx.Done():
	}

	if err != nil {
		return fmt.Errorf("spot price run failed: %w", err)
	}
	return nil
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
