package calc

import (
	"github.com/angas/awattar-go/convert"
	"github.com/angas/awattar-go/slice"
	"github.com/angas/awattar-go/types"
)

// TaxMultiplier returns (taxPercent + 100) / 100.
func TaxMultiplier(taxPercent int) float64 {
	return convert.PercentToMultiplier(taxPercent)
}

func NetPrice(marketPrice float64) float64 {
	return convert.EurMWhToCentKWh(marketPrice)
}

func GrossPrice(netPrice, taxMultiplier float64) float64 {
	return netPrice * taxMultiplier
}

func TotalPrice(grossPrice, fixedMarkup float64) float64 {
	return grossPrice + fixedMarkup
}

// Normalize derives the per kWh prices of a single interval. No rounding is applied.
func Normalize(p types.PriceInterval, taxMultiplier, fixedMarkup float64) types.NormalizedPrice {
	net := NetPrice(p.MarketPrice)
	gross := GrossPrice(net, taxMultiplier)
	return types.NormalizedPrice{
		StartTimestamp: p.StartTimestamp,
		EndTimestamp:   p.EndTimestamp,
		MarketPrice:    p.MarketPrice,
		NetPriceKWh:    net,
		GrossPriceKWh:  gross,
		TotalPriceKWh:  TotalPrice(gross, fixedMarkup),
	}
}

func NormalizeAll(prices []types.PriceInterval, taxPercent int, fixedMarkup float64) []types.NormalizedPrice {
	taxMultiplier := TaxMultiplier(taxPercent)
	return slice.Map(prices, func(p types.PriceInterval) types.NormalizedPrice {
		return Normalize(p, taxMultiplier, fixedMarkup)
	})
}
