package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/angas/awattar-go/hours"
	"github.com/angas/awattar-go/slice"
	"github.com/angas/awattar-go/types"
	"golang.org/x/sync/errgroup"
)

const (
	RawdataId      = "Rawdata"
	PricesChannel  = "prices"
	OrderedChannel = "pricesOrdered"
)

// Publisher writes the fetched prices to a state store.
type Publisher struct {
	store     types.StateStore
	logger    *slog.Logger
	trimStale bool
}

func New(store types.StateStore, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:     store,
		logger:    logger.With(slog.String("module", "publish")),
		trimStale: true,
	}
}

// SetTrimStale switches deletion of entries beyond the current number of prices.
func (p *Publisher) SetTrimStale(trim bool) {
	p.trimStale = trim
}

// Raw declares and writes the unmodified response body.
func (p *Publisher) Raw(ctx context.Context, body []byte) error {
	if err := p.store.SetObjectNotExists(ctx, RawdataId, rawdataObject); err != nil {
		return fmt.Errorf("failed to declare %s: %w", RawdataId, err)
	}
	if err := p.store.SetState(ctx, RawdataId, string(body), true); err != nil {
		return fmt.Errorf("failed to write %s: %w", RawdataId, err)
	}
	return nil
}

// Prices writes every interval in source order to prices.<i>.*
func (p *Publisher) Prices(ctx context.Context, prices []types.NormalizedPrice) error {
	if err := p.project(ctx, PricesChannel, prices, priceFields); err != nil {
		return err
	}
	p.logger.Debug("all prices written", slog.Int("count", len(prices)))
	return nil
}

// OrderedPrices writes the intervals inside the window, cheapest first, to
// pricesOrdered.<j>.* and returns how many were written.
func (p *Publisher) OrderedPrices(ctx context.Context, prices []types.NormalizedPrice, window hours.ThresholdWindow) (int, error) {
	ranked := Rank(prices, window)
	if err := p.project(ctx, OrderedChannel, ranked, orderedFields); err != nil {
		return 0, err
	}
	p.logger.Debug("all ordered prices written", slog.Int("count", len(ranked)),
		slog.Time("thresholdStart", window.Start), slog.Time("thresholdEnd", window.End))
	return len(ranked), nil
}

// Rank sorts by market price ascending, equal prices keep their source order,
// and drops everything outside the window.
func Rank(prices []types.NormalizedPrice, window hours.ThresholdWindow) []types.NormalizedPrice {
	sorted := slice.SortBy(prices, func(p types.NormalizedPrice) float64 { return p.MarketPrice }, slice.Asc)
	return slice.Filter(sorted, func(p types.NormalizedPrice) bool {
		return window.ContainsMillis(p.StartTimestamp, p.EndTimestamp)
	})
}

func (p *Publisher) project(ctx context.Context, channel string, prices []types.NormalizedPrice, fields []field) error {
	for i, price := range prices {
		base := channel + "." + strconv.Itoa(i) + "."
		g, gctx := errgroup.WithContext(ctx)
		for _, f := range fields {
			id := base + f.key
			val := f.value(price)
			g.Go(func() error {
				if err := p.store.SetObjectNotExists(gctx, id, f.obj); err != nil {
					return fmt.Errorf("failed to declare %s: %w", id, err)
				}
				if err := p.store.SetState(gctx, id, val, true); err != nil {
					return fmt.Errorf("failed to write %s: %w", id, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return p.trim(ctx, channel, len(prices))
}

func (p *Publisher) trim(ctx context.Context, channel string, keep int) error {
	if !p.trimStale {
		return nil
	}
	trimmer, ok := p.store.(types.StateTrimmer)
	if !ok {
		return nil
	}
	if err := trimmer.Trim(ctx, channel, keep); err != nil {
		return fmt.Errorf("failed to trim %s: %w", channel, err)
	}
	return nil
}
