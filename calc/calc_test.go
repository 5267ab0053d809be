package calc

import (
	"math"
	"testing"

	"github.com/angas/awattar-go/types"
	"github.com/stretchr/testify/assert"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestNormalizeExample(t *testing.T) {
	p := types.PriceInterval{StartTimestamp: 1, EndTimestamp: 2, MarketPrice: 100}

	n := Normalize(p, TaxMultiplier(19), 2.5)

	assert.Equal(t, int64(1), n.StartTimestamp)
	assert.Equal(t, int64(2), n.EndTimestamp)
	assert.Equal(t, 100.0, n.MarketPrice)
	assert.Equal(t, 10.0, n.NetPriceKWh)
	assert.True(t, almostEqual(n.GrossPriceKWh, 11.9), "gross %f", n.GrossPriceKWh)
	assert.True(t, almostEqual(n.TotalPriceKWh, 14.4), "total %f", n.TotalPriceKWh)
}

func TestNormalizeFormula(t *testing.T) {
	marketPrices := []float64{-12.34, 0, 0.01, 45.67, 100, 250.5, 1000}
	taxes := []int{0, 7, 19, 20, 25}
	markups := []float64{0, 2.5, 13.37, -1}

	for _, mp := range marketPrices {
		for _, tax := range taxes {
			for _, markup := range markups {
				n := Normalize(types.PriceInterval{MarketPrice: mp}, TaxMultiplier(tax), markup)
				want := (mp/10)*(float64(tax+100)/100) + markup
				if n.TotalPriceKWh != want {
					t.Errorf("mp=%f tax=%d markup=%f: got total %v, wanted %v", mp, tax, markup, n.TotalPriceKWh, want)
				}
				if n.GrossPriceKWh != n.NetPriceKWh*TaxMultiplier(tax) {
					t.Errorf("mp=%f tax=%d: gross %v is not net*multiplier", mp, tax, n.GrossPriceKWh)
				}
			}
		}
	}
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	raw := []types.PriceInterval{
		{StartTimestamp: 3, EndTimestamp: 4, MarketPrice: 50},
		{StartTimestamp: 1, EndTimestamp: 2, MarketPrice: 30},
	}

	n := NormalizeAll(raw, 19, 0)

	assert.Len(t, n, 2)
	assert.Equal(t, int64(3), n[0].StartTimestamp)
	assert.Equal(t, int64(1), n[1].StartTimestamp)
	assert.Equal(t, 5.0, n[0].NetPriceKWh)
}
