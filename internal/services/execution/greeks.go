package execution

import (
	"math"

	"OptionsOracle/internal/domain/models"
)

type DeltaZone string

const (
	ZoneATM  DeltaZone = "ATM"
	ZoneNear DeltaZone = "NEAR"
	ZoneFar  DeltaZone = "FAR"
)

// Proxy Greeks derived from distance and momentum; no pricing model.

// DeltaZoneOf classifies the strike distance from spot.
func DeltaZoneOf(spot float64, strike int) DeltaZone {
	diff := math.Abs(spot - float64(strike))
	switch {
	case diff <= 50:
		return ZoneATM
	case diff <= 150:
		return ZoneNear
	default:
		return ZoneFar
	}
}

// ProxyDelta is the option delta assumed for a strike zone.
func ProxyDelta(z DeltaZone) float64 {
	switch z {
	case ZoneATM:
		return 0.5
	case ZoneNear:
		return 0.4
	default:
		return 0.25
	}
}

// TickSize is the exchange premium tick.
const TickSize = 0.05

// PremiumLevels translates spot stop and target distances into premium
// levels around ltp using the strike's proxy delta. The stop never goes
// below one tick.
func PremiumLevels(ltp, spot float64, strike int, stopDistance, targetDistance float64) (stop, target float64) {
	delta := ProxyDelta(DeltaZoneOf(spot, strike))
	stop = math.Max(TickSize, roundTick(ltp-delta*math.Abs(stopDistance)))
	target = roundTick(ltp + delta*math.Abs(targetDistance))
	return stop, target
}

func roundTick(p float64) float64 {
	return math.Round(p/TickSize) * TickSize
}

// HighGamma reports an accelerating uptrend.
func HighGamma(context models.Trend, momentum float64) bool {
	return context == models.TrendUp && momentum > 40
}

// HighTheta reports that most of the session has elapsed.
func HighTheta(timeFactor float64) bool {
	return timeFactor > 0.7
}
