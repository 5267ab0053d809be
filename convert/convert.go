package convert

// EurMWhToCentKWh converts a price in EUR/MWh to Cent/kWh.
func EurMWhToCentKWh(price float64) float64 {
	return price / 10
}

// PercentToMultiplier turns 19 (%) into 1.19.
func PercentToMultiplier(percent int) float64 {
	return float64(percent+100) / 100
}
