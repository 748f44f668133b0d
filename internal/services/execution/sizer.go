package execution

import "github.com/shopspring/decimal"

// PositionSizer converts a risk budget into a lot-rounded quantity.
type PositionSizer struct {
	capital decimal.Decimal
}

func NewPositionSizer(capital float64) *PositionSizer {
	return &PositionSizer{capital: decimal.NewFromFloat(capital)}
}

// Size returns capital*riskPct/stopDistance rounded down to whole lots,
// never less than one lot.
func (s *PositionSizer) Size(riskPct, stopDistance float64, lot int) int {
	if lot <= 0 {
		return 0
	}
	if stopDistance <= 0 {
		return lot
	}
	budget := s.capital.Mul(decimal.NewFromFloat(riskPct))
	units := budget.Div(decimal.NewFromFloat(stopDistance))
	lots := units.Div(decimal.NewFromInt(int64(lot))).Truncate(0).IntPart()
	qty := int(lots) * lot
	if qty < lot {
		return lot
	}
	return qty
}
