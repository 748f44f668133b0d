package features

import "math"

const (
	DefaultRSIPeriod = 14
	DefaultFastMA    = 9
	DefaultSlowMA    = 21
	DefaultHVPeriod  = 20
	tradingDays      = 252
)

// RSI computes the relative strength index over the last period deltas
// using simple average gain and loss. It returns 50 when there are fewer
// than period+1 prices and 100 when there was no loss in the window.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50
	}
	var gain, loss float64
	for i := len(prices) - period; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACrossover returns 1 when SMA(fast) > SMA(slow), 0 otherwise, and 0.5
// when there are fewer than slow prices.
func MACrossover(prices []float64, fast, slow int) float64 {
	if fast <= 0 || slow <= 0 || len(prices) < slow || len(prices) < fast {
		return 0.5
	}
	if mean(prices[len(prices)-fast:]) > mean(prices[len(prices)-slow:]) {
		return 1
	}
	return 0
}

// HistoricalVolatility is the annualized population standard deviation of
// simple returns over the last period returns, in percent.
func HistoricalVolatility(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 0
	}
	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns = append(returns, (prices[i]-prices[i-1])/prices[i-1])
		}
	}
	if len(returns) == 0 {
		return 0
	}
	if len(returns) > period {
		returns = returns[len(returns)-period:]
	}
	m := mean(returns)
	var variance float64
	for _, r := range returns {
		variance += (r - m) * (r - m)
	}
	variance /= float64(len(returns))
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance*tradingDays) * 100
}

// Impulse is the absolute spot move over the last lookback samples, or 0
// when the history is shorter than lookback.
func Impulse(prices []float64, lookback int) float64 {
	if lookback <= 0 || len(prices) < lookback {
		return 0
	}
	return math.Abs(prices[len(prices)-1] - prices[len(prices)-lookback])
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
