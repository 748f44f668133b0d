package analytics

const vwapWindow = 20

// VWAP approximates the volume-weighted average price with the mean of the
// last 20 prices. With 20 or fewer samples the spot itself is returned.
func VWAP(prices []float64, spot float64) float64 {
	if len(prices) <= vwapWindow {
		return spot
	}
	var sum float64
	for _, p := range prices[len(prices)-vwapWindow:] {
		sum += p
	}
	return sum / vwapWindow
}

func Bullish(price, vwap float64) bool { return price > vwap }

func Bearish(price, vwap float64) bool { return price < vwap }
