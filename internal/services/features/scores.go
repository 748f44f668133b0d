package features

import (
	"math"

	"OptionsOracle/internal/domain/models"
)

const (
	MaxLeading = 65.0
	MaxLagging = 35.0
	MaxPDR     = 10
	// NeutralIVS is the implied-volatility skew score used until an option
	// chain IV solver is available.
	NeutralIVS = 7.5
)

// LeadingInputs are the forward-looking components. Nil pointers mean
// the component is unavailable and its neutral value is used.
type LeadingInputs struct {
	VixMomentum   models.VolStatus
	Participation *float64
	VolumeImpulse *float64
	IVS           *float64
	LMS           *float64
	VWAPBullish   bool
}

// LeadingScore sums the leading components. The result is in [0, 65].
func LeadingScore(in LeadingInputs) float64 {
	part := 7.5
	if in.Participation != nil {
		part = math.Min(15, *in.Participation*15)
	}
	vix := 5.0
	if in.VixMomentum == models.VolSupportive {
		vix = 10
	}
	vol := 5.0
	if in.VolumeImpulse != nil {
		vol = math.Min(10, *in.VolumeImpulse*0.1)
	}
	ivs := 7.5
	if in.IVS != nil {
		ivs = math.Min(15, *in.IVS)
	}
	lms := 5.0
	if in.LMS != nil {
		lms = math.Min(10, *in.LMS)
	}
	vwap := 0.0
	if in.VWAPBullish {
		vwap = 5
	}
	return part + vix + vol + ivs + lms + vwap
}

// LaggingScore sums the trend-confirming components. The result is in [0, 35].
func LaggingScore(rsi *float64, maBullish bool, hv *float64) float64 {
	rsiPts := 6.0
	if rsi != nil && *rsi >= 40 && *rsi <= 70 {
		rsiPts = 12
	}
	maPts := 0.0
	if maBullish {
		maPts = 12
	}
	hvPts := 5.0
	if hv != nil {
		hvPts = math.Min(11, *hv)
	}
	return rsiPts + maPts + hvPts
}

// PDRPenalty maps the premium drop across the series to a penalty in
// [-10, 0]. A 20% drop costs 5 points, 40% or more costs 10.
func PDRPenalty(ltp []models.PricePoint) float64 {
	if len(ltp) < 2 {
		return 0
	}
	oldest, newest := ltp[0].Price, ltp[len(ltp)-1].Price
	if oldest <= 0 {
		return 0
	}
	drop := (oldest - newest) / oldest
	if drop <= 0 || math.IsNaN(drop) {
		return 0
	}
	pts := int(drop * 25)
	if pts > MaxPDR {
		pts = MaxPDR
	}
	return -float64(pts)
}

// LMSScore compares the mean spread of the older half of the depth series
// with the newer half. Narrowing spreads score above the neutral 5.
func LMSScore(depth []models.DepthPoint) float64 {
	if len(depth) < 2 {
		return 5
	}
	half := len(depth) / 2
	var oldSum, newSum float64
	for i, d := range depth {
		if i < half {
			oldSum += d.Spread
		} else {
			newSum += d.Spread
		}
	}
	oldAvg := oldSum / float64(half)
	newAvg := newSum / float64(len(depth)-half)
	if oldAvg <= 0 {
		return 5
	}
	return clamp(5+(oldAvg-newAvg)/oldAvg*50, 0, 10)
}

// IVSStub returns the neutral skew score.
func IVSStub() float64 { return NeutralIVS }

// CombinedScore weights normalized leading and lagging scores 65/35 on a
// 0..100 scale and adds the PDR penalty.
func CombinedScore(leading, lagging, pdr float64) float64 {
	lead := math.Min(MaxLeading, leading) / MaxLeading
	lag := math.Min(MaxLagging, lagging) / MaxLagging
	return (lead*0.65+lag*0.35)*100 + pdr
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
