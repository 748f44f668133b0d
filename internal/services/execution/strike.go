package execution

import (
	"math"

	"OptionsOracle/internal/domain/models"
)

// StrikeStep is the index strike interval.
const StrikeStep = 50

// SelectStrike picks the at-the-money strike in a high-gamma uptrend and a
// one-step in-the-money biased strike otherwise. Halves round to even.
func SelectStrike(spot float64, context models.Trend, momentum float64) int {
	if HighGamma(context, momentum) {
		return int(math.RoundToEven(spot/StrikeStep)) * StrikeStep
	}
	return int(math.RoundToEven((spot-StrikeStep)/StrikeStep)) * StrikeStep
}
