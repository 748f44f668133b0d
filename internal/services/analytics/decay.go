package analytics

import "math"

const (
	decayMinSamples = 10
	decayImpulse    = 20.0
)

// DecayOK permits entries only when the recent spot impulse is large enough
// to outrun premium decay.
func DecayOK(prices []float64) bool {
	if len(prices) < decayMinSamples {
		return false
	}
	return math.Abs(prices[len(prices)-1]-prices[len(prices)-5]) > decayImpulse
}
