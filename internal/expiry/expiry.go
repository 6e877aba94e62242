// Package expiry computes how many calendar days a product has left before
// its expiry date and classifies it for the back-office countdown.
package expiry

import (
	"time"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
)

const DefaultWarnDays = 30

// DaysRemaining returns the number of calendar days between now and
// expiresAt, both taken in now's location. It is zero on the expiry day and
// negative once the date has passed.
func DaysRemaining(now, expiresAt time.Time) int {
	loc := now.Location()
	today := civilDate(now, loc)
	expiry := civilDate(expiresAt.In(loc), loc)
	return int(expiry.Sub(today).Hours() / 24)
}

// Classify maps a day count onto an expiry status. A product is expiring from
// warnDays days before its expiry through the expiry day itself.
func Classify(days, warnDays int) enums.ExpiryStatus {
	if warnDays < 0 {
		warnDays = 0
	}
	switch {
	case days < 0:
		return enums.ExpiryStatusExpired
	case days <= warnDays:
		return enums.ExpiryStatusExpiring
	default:
		return enums.ExpiryStatusOK
	}
}

// civilDate drops the clock and moves the date to UTC so that day arithmetic
// is not skewed by DST transitions.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
