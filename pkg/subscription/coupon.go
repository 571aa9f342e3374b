package subscription

import "fmt"

// Message renders the human-readable discount description for the coupon.
// Returns the empty string when the coupon is neither percent- nor
// amount-based, or when the duration mode is unknown.
//
// Amount-off values are gateway minor-unit integers and are divided by 100
// with integer (floor) division: a 150-cent coupon renders as "$1 off.".
// The truncation is kept on purpose so displayed text stays identical to
// what billing history already shows.
func (c *Coupon) Message() string {
	if c == nil {
		return ""
	}

	var base string
	switch {
	case c.PercentOff > 0:
		base = fmt.Sprintf("%d%% off", c.PercentOff)
	case c.AmountOff > 0:
		base = fmt.Sprintf("$%d off", c.AmountOff/100)
	default:
		return ""
	}

	switch c.Duration {
	case DurationRepeating:
		return fmt.Sprintf("%s for the first %d months.", base, c.DurationInMonths)
	case DurationOnce:
		return base + " for the first month."
	case DurationForever:
		return base + "."
	default:
		return ""
	}
}
