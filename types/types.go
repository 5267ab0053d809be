package types

// PriceInterval is one priced slot as delivered by the market data API.
type PriceInterval struct {
	StartTimestamp int64   `json:"start_timestamp"` // Epoch millis
	EndTimestamp   int64   `json:"end_timestamp"`   // Epoch millis
	MarketPrice    float64 `json:"marketprice"`     // Price in EUR per MWh
	Unit           string  `json:"unit,omitempty"`
}

type NormalizedPrice struct {
	StartTimestamp int64
	EndTimestamp   int64
	MarketPrice    float64 // EUR per MWh, kept for ranking
	NetPriceKWh    float64 // Cent per kWh excluding VAT
	GrossPriceKWh  float64 // Cent per kWh including VAT
	TotalPriceKWh  float64 // Gross plus the fixed markup
}
