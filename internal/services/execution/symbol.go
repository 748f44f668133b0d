package execution

import (
	"fmt"
	"strings"
	"time"

	"OptionsOracle/internal/domain/models"
	"OptionsOracle/pkg/util"
)

// expiryCutoffHour is the hour after which a same-day expiry is skipped.
const expiryCutoffHour = 15

// NextExpiry returns the weekly expiry date (Thursday) for now.
func NextExpiry(now time.Time) time.Time {
	return util.NextWeekday(now, time.Thursday, expiryCutoffHour)
}

// ExpiryCode formats an expiry as DDMMMYY, upper case.
func ExpiryCode(expiry time.Time) string {
	return strings.ToUpper(expiry.Format("02Jan06"))
}

// OptionSymbol builds the exchange trading symbol, e.g. NIFTY09JAN2522000CE.
func OptionSymbol(index string, expiry time.Time, strike int, side models.Side) string {
	return fmt.Sprintf("%s%s%05d%s", index, ExpiryCode(expiry), strike, side)
}

// ParseExpiry accepts YYYY-MM-DD or DDMMMYY.
func ParseExpiry(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("02Jan06", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parse expiry %q: expected YYYY-MM-DD or DDMMMYY", s)
}
