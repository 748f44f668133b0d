package analytics

import "OptionsOracle/internal/domain/models"

const (
	contextMinSamples = 30
	contextLookback   = 20
	contextMomentum   = 40.0
)

// Context classifies the trend from the spot move over the last 20 samples.
// It returns WAIT until at least 30 samples are available.
func Context(prices []float64) models.Trend {
	if len(prices) < contextMinSamples {
		return models.TrendWait
	}
	m := prices[len(prices)-1] - prices[len(prices)-contextLookback]
	switch {
	case m > contextMomentum:
		return models.TrendUp
	case m < -contextMomentum:
		return models.TrendDown
	default:
		return models.TrendRange
	}
}
