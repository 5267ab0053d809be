package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angas/awattar-go/awattar"
	"github.com/angas/awattar-go/calc"
	"github.com/angas/awattar-go/config"
	"github.com/angas/awattar-go/hours"
	"github.com/angas/awattar-go/publish"
	"github.com/angas/awattar-go/types"
)

const spotPriceTimeout = 1 * time.Minute

type PriceFetcher interface {
	GetPrices(ctx context.Context, window hours.QueryWindow) (*awattar.Response, error)
}

// SpotPriceTask fetches the prices for today and tomorrow and publishes them.
// Runs never overlap.
type SpotPriceTask struct {
	mu      sync.Mutex
	logger  *slog.Logger
	fetcher PriceFetcher
	store   types.StateStore
	cnfg    func() *config.AppConfig
	now     func() time.Time
}

// NewSpotPriceTask returns the task, cnfg is read at the start of every run.
func NewSpotPriceTask(logger *slog.Logger, fetcher PriceFetcher, store types.StateStore, cnfg func() *config.AppConfig) *SpotPriceTask {
	return &SpotPriceTask{
		logger:  logger,
		fetcher: fetcher,
		store:   store,
		cnfg:    cnfg,
		now:     hours.Now,
	}
}

// Func adapts the task for the scheduler.
func (t *SpotPriceTask) Func() func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), spotPriceTimeout)
		defer cancel()
		_ = t.Run(ctx)
	}
}

func (t *SpotPriceTask) Run(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Debug("running spot price task...")
	cnfg := t.cnfg()

	startHour, endHour, err := cnfg.Awattar.ThresholdHours()
	if err != nil {
		t.logger.Error("spot price task error, invalid configuration", slog.Any("error", err))
		return err
	}

	now := t.now()
	queryWindow := hours.NewQueryWindow(now)
	thresholdWindow := hours.NewThresholdWindow(now, startHour, endHour)
	t.logger.Debug("query window", slog.String("window", queryWindow.String()))

	resp, err := t.fetcher.GetPrices(ctx, queryWindow)
	if err != nil {
		t.logFetchError(err)
		return err
	}
	t.logger.Debug("received data", slog.Int("status", resp.StatusCode), slog.String("body", string(resp.Body)))

	pub := publish.New(t.store, t.logger)
	pub.SetTrimStale(cnfg.Publish.GetTrimStale())

	if err := pub.Raw(ctx, resp.Body); err != nil {
		t.logger.Error("spot price task error, writing raw data", slog.Any("error", err))
		return err
	}

	prices := calc.NormalizeAll(resp.Data, cnfg.Awattar.TaxPercent, cnfg.Awattar.FixedMarkup)

	if err := pub.Prices(ctx, prices); err != nil {
		t.logger.Error("spot price task error, writing prices", slog.Any("error", err))
		return err
	}

	noOfOrdered, err := pub.OrderedPrices(ctx, prices, thresholdWindow)
	if err != nil {
		t.logger.Error("spot price task error, writing ordered prices", slog.Any("error", err))
		return err
	}

	t.logger.Info("spot price task done",
		slog.Int("noOfPrices", len(prices)),
		slog.Int("noOfOrderedPrices", noOfOrdered))
	return nil
}

func (t *SpotPriceTask) logFetchError(err error) {
	var remoteErr *awattar.RemoteError
	var noRespErr *awattar.NoResponseError
	var reqErr *awattar.RequestError
	var decodeErr *awattar.DecodeError

	switch {
	case errors.As(err, &remoteErr):
		t.logger.Warn("spot price task, api returned an error",
			slog.Int("status", remoteErr.StatusCode), slog.String("body", remoteErr.Body))
	case errors.As(err, &noRespErr):
		t.logger.Error("spot price task error, no response from api", slog.Any("error", noRespErr.Err))
	case errors.As(err, &reqErr):
		t.logger.Error("spot price task error, request setup failed", slog.Any("error", reqErr.Err))
	case errors.As(err, &decodeErr):
		t.logger.Error("spot price task error, malformed response", slog.Any("error", decodeErr.Err))
	default:
		t.logger.Error("spot price task error", slog.Any("error", fmt.Errorf("fetching prices: %w", err)))
	}
}
