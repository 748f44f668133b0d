package analytics

import "OptionsOracle/internal/domain/models"

// Volatility compares the current volatility index with the previous
// cycle's. Either value missing yields UNKNOWN.
func Volatility(vix float64, hasVix bool, prev float64, hasPrev bool) models.VolStatus {
	if !hasPrev || !hasVix {
		return models.VolUnknown
	}
	if vix > prev {
		return models.VolSupportive
	}
	return models.VolWeak
}
