package membership

import (
	"errors"
	"fmt"
	"time"
)

// ErrLifetimeNoEndDate is returned when an end date is requested for a
// lifetime membership; lifetime coverage has no computable end.
var ErrLifetimeNoEndDate = errors.New("membership: lifetime duration has no end date")

// EndDate projects the inclusive end of a coverage term starting at start:
// start plus interval units, minus one day. Months and years add calendar
// months and years, so 2023-01-15 plus one month ends 2023-02-14.
func EndDate(start time.Time, d Duration) (time.Time, error) {
	if d.Unit != DurationLifetime && d.Interval <= 0 {
		return time.Time{}, fmt.Errorf("membership: duration interval must be positive, got %d", d.Interval)
	}

	switch d.Unit {
	case DurationDay:
		return start.AddDate(0, 0, d.Interval-1), nil
	case DurationMonth:
		return start.AddDate(0, d.Interval, -1), nil
	case DurationYear:
		return start.AddDate(d.Interval, 0, -1), nil
	case DurationLifetime:
		return time.Time{}, ErrLifetimeNoEndDate
	default:
		return time.Time{}, fmt.Errorf("membership: unknown duration unit %d", d.Unit)
	}
}
